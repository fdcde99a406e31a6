package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/srtdog64/paramforge/internal/probe"
	"github.com/srtdog64/paramforge/internal/randutil"
)

// saveResponse writes the response that exposed a parameter to the
// --save-responses directory. The 3-char nonce keeps two findings for the
// same parameter from overwriting each other.
func (r *Runner) saveResponse(resp *probe.Response, param string) error {
	if r.Config.SaveResponses == "" {
		return nil
	}

	filename := filepath.Join(r.Config.SaveResponses, fmt.Sprintf(
		"%s-%s-%s-%s",
		resp.Origin.Host,
		strings.ToLower(resp.Origin.Method),
		param,
		randutil.Line(3),
	))

	if err := os.WriteFile(filename, []byte(resp.Print()), 0o644); err != nil {
		return errors.Wrapf(err, "saving response for %q", param)
	}

	r.log.WithField("response", resp.Origin.ID).Debugf("saved response to %s", filename)
	return nil
}
