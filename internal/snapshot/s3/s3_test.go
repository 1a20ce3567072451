// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package s3

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal path style S3 endpoint. Bucket always exists, PUT stores the body.
type fakeEndpoint struct {
	mutex   sync.Mutex
	objects map[string][]byte
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.mutex.Lock()
		f.objects[r.URL.Path] = body
		f.mutex.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestHTTPClientSettings(t *testing.T) {
	client, err := newHTTPClientWithSettings(defaultHTTPSettings)
	require.NoError(t, err)

	tr, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, defaultHTTPSettings.maxAllIdleConns, tr.MaxIdleConns)
	assert.Equal(t, defaultHTTPSettings.maxHostIdleConns, tr.MaxIdleConnsPerHost)
	assert.Equal(t, defaultHTTPSettings.tlsHandshake, tr.TLSHandshakeTimeout)
}

func TestAWSConfig(t *testing.T) {
	c := newAWSConfig(Options{Remote: "http://minio:9000", Region: "eu-west-1"}, http.DefaultClient)

	assert.Equal(t, "http://minio:9000", *c.Endpoint)
	assert.Equal(t, "eu-west-1", *c.Region)
	assert.True(t, *c.S3ForcePathStyle)
}

func TestUpload(t *testing.T) {
	endpoint := &fakeEndpoint{objects: make(map[string][]byte)}
	server := httptest.NewServer(endpoint)
	defer server.Close()

	s, err := New(Options{
		Remote:    server.URL,
		Region:    "us-east-1",
		Bucket:    "snapshots",
		AccessKey: "access",
		SecretKey: "secret",
	})
	require.NoError(t, err)

	require.NoError(t, s.Upload("ramdisk/00000000/00000000", []byte("hello")))

	endpoint.mutex.Lock()
	defer endpoint.mutex.Unlock()
	assert.Equal(t, []byte("hello"), endpoint.objects["/snapshots/ramdisk/00000000/00000000"])
}
