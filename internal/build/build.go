package build

import "strings"

var (
	Version = "dev"
	AppName = "CmdStan Runner"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(strings.ReplaceAll(AppName, " ", "-"))
	}
}
