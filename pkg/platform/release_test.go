// pkg/platform/release_test.go

package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ubuntuNoble = `PRETTY_NAME="Ubuntu 24.04.2 LTS"
NAME="Ubuntu"
VERSION_ID="24.04"
VERSION="24.04.2 LTS (Noble Numbat)"
VERSION_CODENAME=noble
ID=ubuntu
ID_LIKE=debian
UBUNTU_CODENAME=noble
`

func TestParseOSRelease(t *testing.T) {
	release, err := ParseOSRelease(strings.NewReader(ubuntuNoble))
	require.NoError(t, err)

	assert.Equal(t, "ubuntu", release.ID)
	assert.Equal(t, "debian", release.IDLike)
	assert.Equal(t, "24.04", release.VersionID)
	assert.Equal(t, "noble", release.Codename)
	assert.Equal(t, "Ubuntu 24.04.2 LTS", release.PrettyName)
}

func TestParseOSRelease_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, r *Release)
	}{
		{
			name:  "comments and blank lines ignored",
			input: "# header\n\nID=debian\nVERSION_ID=\"12\"\n",
			check: func(t *testing.T, r *Release) {
				assert.Equal(t, "debian", r.ID)
				assert.Equal(t, "12", r.VersionID)
			},
		},
		{
			name:  "codename falls back to ubuntu codename",
			input: "ID=ubuntu\nUBUNTU_CODENAME=jammy\n",
			check: func(t *testing.T, r *Release) {
				assert.Equal(t, "jammy", r.Codename)
			},
		},
		{
			name:    "missing ID is rejected",
			input:   "VERSION_ID=\"24.04\"\n",
			wantErr: true,
		},
		{
			name:    "empty input is rejected",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release, err := ParseOSRelease(strings.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, release)
		})
	}
}
