package imapsource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadHosts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.json")
	err := os.WriteFile(path, []byte(`{"gmail.com": "imap.gmail.com", "gmx.net": "imap.gmx.net"}`), 0o644)
	require.NoError(t, err)

	hosts, err := LoadHosts(path)
	require.NoError(t, err)
	assert.Equal(t, "imap.gmail.com", hosts["gmail.com"])
	assert.Equal(t, "imap.gmx.net", hosts["gmx.net"])
}

func TestLoadHostsShipped(t *testing.T) {
	hosts, err := LoadHosts("../../../data/imap_hosts.json")
	require.NoError(t, err)
	assert.NotEmpty(t, hosts)
	assert.Equal(t, "imap.gmail.com", hosts["gmail.com"])
}

func TestLoadHostsErrors(t *testing.T) {
	_, err := LoadHosts(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadHosts(path)
	assert.Error(t, err)
}

func TestHostForAccount(t *testing.T) {
	hosts := Hosts{"gmail.com": "imap.gmail.com"}

	assert.Equal(t, "imap.gmail.com", hosts.HostForAccount("alice@gmail.com"))
	assert.Equal(t, "imap.gmail.com", hosts.HostForAccount("alice@GMAIL.COM"))
	assert.Equal(t, "imap.example.org", hosts.HostForAccount("bob@example.org"))
	assert.Equal(t, "", hosts.HostForAccount("not-an-address"))
	assert.Equal(t, "", hosts.HostForAccount("trailing@"))
}

func TestParseCredentials(t *testing.T) {
	creds, err := ParseCredentials([]string{
		"alice@gmail.com:hunter2",
		"bob@example.org:p:a:ss",
	})
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, Credentials{Account: "alice@gmail.com", Password: "hunter2"}, creds[0])
	assert.Equal(t, Credentials{Account: "bob@example.org", Password: "p:a:ss"}, creds[1])

	_, err = ParseCredentials([]string{"no-separator"})
	assert.Error(t, err)
	_, err = ParseCredentials([]string{":password-only"})
	assert.Error(t, err)
	_, err = ParseCredentials([]string{"account-only:"})
	assert.Error(t, err)
}
