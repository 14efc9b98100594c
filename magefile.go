//go:build mage

// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "pvattr"
	modulePath = "github.com/penny-vault/pv-attribution"
	coverFile  = "coverage.out"
)

var goexe = "go"

func init() {
	if exe := os.Getenv("GOEXE"); exe != "" {
		goexe = exe
	}
}

// Default builds the pvattr binary
var Default = Build

// Build compiles pvattr with the commit hash and build date stamped into
// the version string
func Build() error {
	fmt.Println("Building pvattr...")
	return sh.RunWith(buildEnv(), goexe, "build", "-o", binaryName, "-ldflags", ldflags(), ".")
}

// Install puts pvattr in $GOPATH/bin
func Install() error {
	return sh.RunWith(buildEnv(), goexe, "install", "-ldflags", ldflags(), ".")
}

// Clean removes build and coverage output
func Clean() {
	for _, f := range []string{binaryName, coverFile} {
		os.RemoveAll(f)
	}
}

// Check formats, vets and runs the race-enabled test suite
func Check() {
	mg.SerialDeps(Fmt, Vet, TestRace)
}

// Test runs every ginkgo suite
func Test() error {
	return quiet(goexe, "test", "./...")
}

// TestRace runs every ginkgo suite with the race detector
func TestRace() error {
	return quiet(goexe, "test", "-race", "./...")
}

// Engine runs only the attribution engine and period suites; they need no
// database, redis or network
func Engine() error {
	return quiet(goexe, "test", "-v", "./attribution/...", "./period/...")
}

// Fmt fails when a file is not gofmt'ed
func Fmt() error {
	dirs, err := packageDirs()
	if err != nil {
		return err
	}

	out, err := sh.Output("gofmt", append([]string{"-l"}, dirs...)...)
	if err != nil {
		return err
	}
	if out = strings.TrimSpace(out); out != "" {
		fmt.Println("not gofmt'ed:")
		fmt.Println(out)
		return errors.New("improperly formatted go files")
	}
	return nil
}

// Vet runs go vet over the module
func Vet() error {
	if err := sh.Run(goexe, "vet", "./..."); err != nil {
		return fmt.Errorf("go vet: %w", err)
	}
	return nil
}

// Cover writes a coverage profile and prints per-function coverage
func Cover() error {
	if err := quiet(goexe, "test", "-covermode=count", "-coverprofile="+coverFile, "./..."); err != nil {
		return err
	}
	return sh.RunV(goexe, "tool", "cover", "-func="+coverFile)
}

// Serve builds pvattr and starts the HTTP service with the local config
func Serve() error {
	mg.Deps(Build)
	return sh.RunV("./"+binaryName, "serve")
}

func ldflags() string {
	return fmt.Sprintf("-X %[1]s/common.commitHash=$COMMIT_HASH -X %[1]s/common.buildDate=$BUILD_DATE", modulePath)
}

func buildEnv() map[string]string {
	hash, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	return map[string]string{
		"COMMIT_HASH": hash,
		"BUILD_DATE":  time.Now().Format("2006-01-02T15:04:05Z0700"),
	}
}

// quiet only prints the command output when it fails, unless mage -v
func quiet(cmd string, args ...string) error {
	if mg.Verbose() {
		return sh.RunV(cmd, args...)
	}
	out, err := sh.Output(cmd, args...)
	if err != nil {
		fmt.Fprintln(os.Stderr, out)
	}
	return err
}

func packageDirs() ([]string, error) {
	out, err := sh.Output(goexe, "list", "-f", "{{.Dir}}", "./...")
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}
