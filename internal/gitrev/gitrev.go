// Package gitrev writes the current git revision into a C header.
package gitrev

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Describe runs "git describe" in dir and returns its first line.
func Describe(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "describe")
	cmd.Dir = dir

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git describe: %w", err)
	}
	line, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(line), nil
}

// Revision extracts the abbreviated SHA from a "git describe" line such as
// "v1.2-14-g2414721".
func Revision(description string) (string, bool) {
	idx := strings.LastIndex(description, "-g")
	if idx < 0 || idx+2 >= len(description) {
		return "", false
	}
	return description[idx+2:], true
}

// WriteHeader writes GIT_DESCRIPTION and GIT_REVISION defines. A description
// without a SHA, or describeErr, produces the error form of the header.
func WriteHeader(w io.Writer, description string, describeErr error) error {
	sha, ok := Revision(description)
	var err error
	if describeErr != nil || !ok {
		log.Warn().Err(describeErr).Str("description", description).Msg("Calling git describe failed")
		_, err = io.WriteString(w, "#define GIT_DESCRIPTION \"<error>\"\n#define GIT_REVISION -1\n")
	} else {
		log.Info().Str("revision", sha).Msg("Building from git revision")
		_, err = fmt.Fprintf(w, "#define GIT_DESCRIPTION \"%s\"\n#define GIT_REVISION 0x%s\n", description, sha)
	}
	if err != nil {
		return fmt.Errorf("write revision header: %w", err)
	}
	return nil
}
