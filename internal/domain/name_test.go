package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputName(t *testing.T) {
	cases := map[string]string{
		"https://example.com/files/ubuntu.iso":        "ubuntu.iso",
		"https://example.com/a/b/c/archive.tar.gz":    "archive.tar.gz",
		"https://example.com/release.zip?token=abc#f": "release.zip",
		"https://example.com/":                        "download",
		"https://example.com":                         "download",
		"https://example.com/dir/":                    "dir",
		"://bad-url":                                  "download",
	}

	for raw, want := range cases {
		assert.Equal(t, want, OutputName(raw), "url %q", raw)
	}
}

func TestNewDownloadJob(t *testing.T) {
	job := NewDownloadJob("2abc", "https://example.com/files/data.bin", "/tmp/out")

	assert.Equal(t, "data.bin", job.Name)
	assert.Equal(t, "/tmp/out/data.bin.part", job.PartPath)
	assert.Equal(t, "/tmp/out/data.bin", job.FinalPath)
	assert.Equal(t, StatusPending, job.Status)
	assert.False(t, job.Status.Terminal())
}
