package sidequest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"sideQuest/api"
)

func TestUploadFile(t *testing.T) {
	payload := bytes.Repeat([]byte("quest-log "), 512)
	src := filepath.Join(t.TempDir(), "journal.txt")
	if err := os.WriteFile(src, payload, 0o600); err != nil {
		t.Fatal(err)
	}

	var gotName string
	var gotSize int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotName = header.Filename
		gotSize = len(data)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"uploaded"}`))
	})
	client, _ := newTestClient(t, handler, "token")

	var progress []int
	var ack api.MessageResponse
	_, err := client.UploadFile(context.Background(), "/api/v1/upload", src,
		func(pct int) { progress = append(progress, pct) }, Options{}, &ack)
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}

	if gotName != "journal.txt" {
		t.Errorf("uploaded filename = %q, want journal.txt", gotName)
	}
	if gotSize != len(payload) {
		t.Errorf("uploaded size = %d, want %d", gotSize, len(payload))
	}
	if ack.Message != "uploaded" {
		t.Errorf("ack = %+v", ack)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Errorf("progress = %v, want a final 100", progress)
	}
}

func TestUploadFileMissingSource(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler(), "token")

	_, err := client.UploadFile(context.Background(), "/api/v1/upload",
		filepath.Join(t.TempDir(), "absent.txt"), nil, Options{}, nil)
	if err == nil {
		t.Fatal("expected an error for a missing source file")
	}
	if code := api.CodeOf(err); code != api.CodeClientError {
		t.Errorf("error code = %s, want %s", code, api.CodeClientError)
	}
}

func TestDownloadFile(t *testing.T) {
	payload := bytes.Repeat([]byte("export "), 1024)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(payload)
	})
	client, _ := newTestClient(t, handler, "token")

	dest := filepath.Join(t.TempDir(), "export.bin")
	if err := client.DownloadFile(context.Background(), "/api/v1/export", dest, Options{}); err != nil {
		t.Fatalf("DownloadFile() error = %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("downloaded %d bytes, want %d", len(got), len(payload))
	}
}

func TestDownloadFileFailureLeavesNoDest(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no such export"}`))
	})
	client, _ := newTestClient(t, handler, "token")

	dir := t.TempDir()
	dest := filepath.Join(dir, "export.bin")
	err := client.DownloadFile(context.Background(), "/api/v1/export", dest, Options{})
	if err == nil {
		t.Fatal("expected an error for a 404 download")
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("destination must not exist after a failed download")
	}

	// No stray temp files either.
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("leftover files after failure: %v", entries)
	}
}
