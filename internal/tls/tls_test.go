package tls

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Trygon117/ProjectCartesian/internal/config"
)

func TestSetupDisabled(t *testing.T) {
	c, err := Setup(config.TLSConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSetupErrors(t *testing.T) {
	_, err := Setup(config.TLSConfig{Enabled: true})
	assert.Error(t, err)

	_, err = Setup(config.TLSConfig{Enabled: true, Dir: t.TempDir()})
	assert.Error(t, err, "missing pair without auto_generate")

	_, err = Setup(config.TLSConfig{Enabled: true, CertFile: "/nope.crt", KeyFile: "/nope.key"})
	assert.Error(t, err)

	_, err = Setup(config.TLSConfig{Enabled: true, Dir: t.TempDir(), AutoGenerate: true, MinVersion: "1.3", MaxVersion: "1.2"})
	assert.Error(t, err)
}

func TestResolveTLSVersions(t *testing.T) {
	minV, maxV := resolveTLSVersions(config.TLSConfig{})
	assert.Equal(t, uint16(tls.VersionTLS13), minV)
	assert.Equal(t, uint16(tls.VersionTLS13), maxV)

	minV, _ = resolveTLSVersions(config.TLSConfig{MinVersion: "tls1.2"})
	assert.Equal(t, uint16(tls.VersionTLS12), minV)

	minV, _ = resolveTLSVersions(config.TLSConfig{MinVersion: "bogus"})
	assert.Equal(t, uint16(tls.VersionTLS13), minV)
}

func TestAutoGenerateAndHandshake(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	srvCfg, err := Setup(config.TLSConfig{Enabled: true, Dir: dir, AutoGenerate: true})
	require.NoError(t, err)
	require.NotNil(t, srvCfg)
	for _, f := range []string{tlsCrt, tlsKey, tlsCaCrt} {
		_, err := os.Stat(filepath.Join(dir, f))
		require.NoError(t, err, f)
	}

	// second Setup reuses the existing pair
	before, err := os.ReadFile(filepath.Join(dir, tlsCrt))
	require.NoError(t, err)
	_, err = Setup(config.TLSConfig{Enabled: true, Dir: dir, AutoGenerate: true})
	require.NoError(t, err)
	after, err := os.ReadFile(filepath.Join(dir, tlsCrt))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", srvCfg)
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("ok"))
		_ = conn.Close()
	}()

	ca, err := os.ReadFile(filepath.Join(dir, tlsCaCrt))
	require.NoError(t, err)
	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM(ca))

	conn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{RootCAs: pool, ServerName: "localhost", MinVersion: tls.VersionTLS13})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	b, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(b))
}

func TestSetupCertFiles(t *testing.T) {
	dir := t.TempDir()
	cp, kp := filepath.Join(dir, "a.crt"), filepath.Join(dir, "a.key")
	require.NoError(t, GenerateSelfSignedCert(CertConfig{
		CommonName: "panel.local",
		Hosts:      []string{"panel.local", "10.0.0.1"},
		NotAfter:   time.Now().AddDate(0, 0, 1),
		CertPath:   cp,
		KeyPath:    kp,
	}))
	c, err := Setup(config.TLSConfig{Enabled: true, CertFile: cp, KeyFile: kp})
	require.NoError(t, err)
	cert, err := c.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"panel.local"}, leaf.DNSNames)
	require.Len(t, leaf.IPAddresses, 1)
	assert.Equal(t, "10.0.0.1", leaf.IPAddresses[0].String())

	info, err := os.Stat(kp)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}
