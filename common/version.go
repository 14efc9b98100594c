// Copyright 2021 JD Fergason
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

package common

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
)

// set at link time by mage
var (
	commitHash string
	buildDate  string
)

// Version is a SemVer 2.0.0 build version
type Version struct {
	Major int
	Minor int
	Patch int

	// Suffix marks a pre-release; blank for releases
	Suffix string
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Suffix == "" {
		return s
	}
	s += "-" + v.Suffix
	if commitHash != "" {
		s += "+" + strings.ToLower(commitHash)
	}
	return s
}

// BuildInfo describes the running pvattr binary
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"buildDate,omitempty"`
	Platform  string `json:"platform"`
	GoVersion string `json:"goVersion"`
}

// CurrentBuild returns the build info of this binary
func CurrentBuild() BuildInfo {
	return BuildInfo{
		Version:   CurrentVersion.String(),
		Commit:    commitHash,
		BuildDate: buildDate,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion: runtime.Version(),
	}
}

// Dependencies lists the modules compiled into the binary as path@version,
// sorted by path
func Dependencies() []string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	deps := make([]string, 0, len(bi.Deps))
	for _, dep := range bi.Deps {
		mod := dep
		if dep.Replace != nil {
			mod = dep.Replace
		}
		deps = append(deps, mod.Path+"@"+mod.Version)
	}
	sort.Strings(deps)
	return deps
}

// BuildVersionString is the output of "pvattr version"
func BuildVersionString(withDeps bool) string {
	info := CurrentBuild()

	date := info.BuildDate
	if date == "" {
		date = "unknown"
	}
	commit := info.Commit
	if commit == "" {
		commit = "unknown"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "pvattr v%s %s\n\n", info.Version, info.Platform)
	fmt.Fprintf(&sb, "Build Date: %s\nCommit: %s\nBuilt with: %s", date, commit, info.GoVersion)

	if withDeps {
		if deps := Dependencies(); len(deps) > 0 {
			sb.WriteString("\n\nDependencies:\n\n")
			sb.WriteString(strings.Join(deps, "\n"))
		}
	}

	return sb.String()
}
