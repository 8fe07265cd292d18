package install

import (
	"fmt"
	"regexp"
	"strings"
)

var versionTagRe = regexp.MustCompile(`^v\d+\.\d+(\.\d+)?(-rc\d+)?$`)

// NormalizeVersionTag maps a user-supplied version ("2.36.0") to the
// release tag form ("v2.36.0").
func NormalizeVersionTag(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return version
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return version
}

// ValidateVersionTag rejects tags that are not plain release versions.
func ValidateVersionTag(tag string) error {
	if !versionTagRe.MatchString(tag) {
		return fmt.Errorf("invalid version tag %q", tag)
	}
	return nil
}

// VersionFromTag strips the tag prefix back off ("v2.36.0" -> "2.36.0").
func VersionFromTag(tag string) string {
	return strings.TrimPrefix(tag, "v")
}
