package cmd

import (
	"fmt"

	"stack-keeper/cmd/root"
)

var SoftwareVer = ""
var BuildTime = ""
var BuildTag = ""
var BuildCommitId = ""

func versionString() string {
	ver := SoftwareVer
	if ver == "" {
		ver = "dev"
	}
	return fmt.Sprintf("%s (build time: %s, tag: %s, commit: %s)", ver, BuildTime, BuildTag, BuildCommitId)
}

func init() {
	root.RootCmd.Version = versionString()
}
