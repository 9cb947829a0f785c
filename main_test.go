package main

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specSample = "A;1.0\nB;-2.5\nA;3.0\n"
const specReport = "{A=1.0/2.0/3.0, B=-2.5/-2.5/-2.5}\n"

// hashFile return the sha1 of a file
func hashFile(filepath string) (string, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"brc"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunStdout(t *testing.T) {
	input := filepath.Join(t.TempDir(), "measurements.txt")
	require.NoError(t, os.WriteFile(input, []byte(specSample), 0o644))
	for _, workers := range []int{1, 2, 3, 16} {
		for _, reader := range []string{"disk", "mmap"} {
			t.Run(fmt.Sprintf("workers=%d, reader=%s", workers, reader), func(t *testing.T) {
				code, stdout, stderr := runCLI("-workers", fmt.Sprint(workers), "-reader", reader, input)
				assert.Equal(t, 0, code, stderr)
				assert.Equal(t, specReport, stdout)
			})
		}
	}
}

func TestRunOutFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "measurements.txt")
	output := filepath.Join(dir, "measurements.out")
	expected := filepath.Join(dir, "expected.out")
	require.NoError(t, os.WriteFile(input, []byte(specSample), 0o644))
	require.NoError(t, os.WriteFile(expected, []byte(specReport), 0o644))

	code, stdout, stderr := runCLI("-out", output, "-strategy", "preload", "-hash", "seeded", input)
	require.Equal(t, 0, code, stderr)
	assert.Empty(t, stdout)
	want, err := hashFile(expected)
	require.NoError(t, err)
	got, err := hashFile(output)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunVerbose(t *testing.T) {
	input := filepath.Join(t.TempDir(), "measurements.txt")
	require.NoError(t, os.WriteFile(input, []byte(specSample), 0o644))
	code, stdout, stderr := runCLI("-v", input)
	require.Equal(t, 0, code)
	assert.Equal(t, specReport, stdout)
	assert.Contains(t, stderr, "partitioned input")
	assert.Contains(t, stderr, "done")
}

func TestRunMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.txt")
	code, stdout, stderr := runCLI(missing)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "File does not exist: "+missing)
}

func TestRunMalformed(t *testing.T) {
	input := filepath.Join(t.TempDir(), "measurements.txt")
	require.NoError(t, os.WriteFile(input, []byte("A;1.0\nB;oops\n"), 0o644))

	code, stdout, stderr := runCLI(input)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout, "no partial output")
	assert.Contains(t, stderr, "malformed value")

	code, stdout, _ = runCLI("-skip-malformed", input)
	assert.Equal(t, 0, code)
	assert.Equal(t, "{A=1.0/1.0/1.0}\n", stdout)
}

func TestRunUsage(t *testing.T) {
	code, _, stderr := runCLI()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage")

	input := filepath.Join(t.TempDir(), "measurements.txt")
	require.NoError(t, os.WriteFile(input, []byte(specSample), 0o644))
	for _, args := range [][]string{
		{"-workers", "0", input},
		{"-reader", "tape", input},
		{"-profile", "block", input},
		{"-nope", input},
		{input, input},
	} {
		code, _, _ := runCLI(args...)
		assert.Equal(t, 2, code, "%v", args)
	}
}
