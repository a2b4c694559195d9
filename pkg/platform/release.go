// pkg/platform/release.go

package platform

import (
	"bufio"
	"io"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_io"
)

// Release holds the parsed /etc/os-release identity of the host.
type Release struct {
	ID         string // "ubuntu"
	IDLike     string // "debian"
	VersionID  string // "24.04"
	Codename   string // "noble"
	PrettyName string // "Ubuntu 24.04.2 LTS"
}

// DetectRelease reads and parses /etc/os-release and verifies the host is a
// Debian-family system.
func DetectRelease(rc *cup_io.RuntimeContext) (*Release, error) {
	logger := otelzap.Ctx(rc.Ctx)

	file, err := os.Open("/etc/os-release")
	if err != nil {
		return nil, cerr.Wrap(err, "open /etc/os-release")
	}
	defer file.Close()

	release, err := ParseOSRelease(file)
	if err != nil {
		return nil, err
	}

	if release.ID != "ubuntu" && !strings.Contains(release.IDLike, "debian") {
		return nil, cerr.Newf("unsupported distribution %q, a Debian-family OS is required", release.ID)
	}

	logger.Debug("OS release detected",
		zap.String("id", release.ID),
		zap.String("version", release.VersionID),
		zap.String("codename", release.Codename))
	return release, nil
}

// ParseOSRelease parses os-release formatted content.
func ParseOSRelease(r io.Reader) (*Release, error) {
	release := &Release{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.Trim(value, `"`)

		switch key {
		case "ID":
			release.ID = value
		case "ID_LIKE":
			release.IDLike = value
		case "VERSION_ID":
			release.VersionID = value
		case "VERSION_CODENAME", "UBUNTU_CODENAME":
			if release.Codename == "" {
				release.Codename = value
			}
		case "PRETTY_NAME":
			release.PrettyName = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, cerr.Wrap(err, "scan os-release")
	}
	if release.ID == "" {
		return nil, cerr.New("os-release content is missing an ID field")
	}
	return release, nil
}
