package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ocrpipe/internal/ocr"
)

var envKeys = []string{
	"OCR_ENGINE", "TESSERACT_PATH", "OCR_LANGUAGE", "OCR_PSM", "OCR_OEM", "TESSDATA_PREFIX",
	"OCR_TIMEOUT", "OCR_MAX_CONCURRENT", "OCR_MAX_IMAGE_BYTES", "TEMP_DIR",
	"HTTP_ADDR", "HTTP_SHUTDOWN_TIMEOUT", "OCR_SERVER_URL",
	"GOOGLE_CLOUD_PROJECT", "GOOGLE_CLOUD_LOCATION", "DOCUMENT_AI_PROCESSOR_ID",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_TIME_FORMAT", "LOG_OUTPUT",
}

// clearEnv blanks every variable Load reads; getEnv treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine != ocr.EngineTesseract {
		t.Errorf("Engine = %q", cfg.Engine)
	}
	if cfg.Language != "eng" || cfg.PSM != 11 || cfg.OEM != 3 {
		t.Errorf("Language/PSM/OEM = %q/%d/%d", cfg.Language, cfg.PSM, cfg.OEM)
	}
	if cfg.EngineTimeout != 60*time.Second || cfg.MaxConcurrent != 4 || cfg.MaxImageBytes != 20*1024*1024 {
		t.Errorf("limits = %v/%d/%d", cfg.EngineTimeout, cfg.MaxConcurrent, cfg.MaxImageBytes)
	}
	if cfg.HTTPAddr != ":8080" || cfg.ServerURL != "http://localhost:8080" {
		t.Errorf("HTTPAddr/ServerURL = %q/%q", cfg.HTTPAddr, cfg.ServerURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCR_LANGUAGE", "tha+eng")
	t.Setenv("OCR_PSM", "6")
	t.Setenv("OCR_OEM", "1")
	t.Setenv("OCR_TIMEOUT", "90s")
	t.Setenv("OCR_MAX_CONCURRENT", "8")
	t.Setenv("OCR_MAX_IMAGE_BYTES", "1048576")
	t.Setenv("TEMP_DIR", "/var/tmp/ocr")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("TESSERACT_PATH", "/opt/tesseract/bin/tesseract")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	eng := cfg.GetEngineConfig()
	if eng.Tesseract.Binary != "/opt/tesseract/bin/tesseract" || eng.Tesseract.PSM != 6 || eng.Tesseract.OEM != 1 {
		t.Errorf("engine config = %+v", eng.Tesseract)
	}

	in := cfg.GetIngestConfig()
	if in.Language != "tha+eng" || in.EngineTimeout != 90*time.Second || in.MaxConcurrent != 8 ||
		in.MaxImageBytes != 1<<20 || in.TempDir != "/var/tmp/ocr" {
		t.Errorf("ingest config = %+v", in)
	}

	srv := cfg.GetServerConfig()
	if srv.Addr != "127.0.0.1:9000" || srv.MaxImageBytes != 1<<20 {
		t.Errorf("server config = %+v", srv)
	}
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCR_PSM", "sparse")
	t.Setenv("OCR_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PSM != ocr.DefaultPSM || cfg.EngineTimeout != 60*time.Second {
		t.Errorf("PSM/timeout = %d/%v, want defaults", cfg.PSM, cfg.EngineTimeout)
	}
}

func TestLoadWarnsOnUnparsableValue(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	clearEnv(t)
	t.Setenv("OCR_TIMEOUT", "30")
	t.Setenv("OCR_MAX_CONCURRENT", "four")
	t.Setenv("OCR_MAX_IMAGE_BYTES", "20MB")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EngineTimeout != 60*time.Second || cfg.MaxConcurrent != 4 || cfg.MaxImageBytes != 20*1024*1024 {
		t.Errorf("limits = %v/%d/%d, want defaults", cfg.EngineTimeout, cfg.MaxConcurrent, cfg.MaxImageBytes)
	}

	out := buf.String()
	for _, want := range []string{
		`"variable":"OCR_TIMEOUT"`, `"value":"30"`,
		`"variable":"OCR_MAX_CONCURRENT"`, `"variable":"OCR_MAX_IMAGE_BYTES"`,
		`"level":"warn"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestLoadValidValuesDoNotWarn(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	clearEnv(t)
	t.Setenv("OCR_TIMEOUT", "30s")
	t.Setenv("OCR_PSM", "6")

	if _, err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown engine", map[string]string{"OCR_ENGINE": "abbyy"}, "OCR_ENGINE"},
		{"documentai without project", map[string]string{"OCR_ENGINE": "documentai", "DOCUMENT_AI_PROCESSOR_ID": "p"}, "GOOGLE_CLOUD_PROJECT"},
		{"documentai without processor", map[string]string{"OCR_ENGINE": "documentai", "GOOGLE_CLOUD_PROJECT": "p"}, "DOCUMENT_AI_PROCESSOR_ID"},
		{"blank language", map[string]string{"OCR_LANGUAGE": "   "}, "OCR_LANGUAGE"},
		{"psm out of range", map[string]string{"OCR_PSM": "14"}, "OCR_PSM"},
		{"oem out of range", map[string]string{"OCR_OEM": "4"}, "OCR_OEM"},
		{"psm orientation only", map[string]string{"OCR_PSM": "0"}, "OCR_PSM"},
		{"oem legacy engine", map[string]string{"OCR_OEM": "0"}, "OCR_OEM"},
		{"negative timeout", map[string]string{"OCR_TIMEOUT": "-1s"}, "OCR_TIMEOUT"},
		{"zero concurrency", map[string]string{"OCR_MAX_CONCURRENT": "0"}, "OCR_MAX_CONCURRENT"},
		{"zero size limit", map[string]string{"OCR_MAX_IMAGE_BYTES": "0"}, "OCR_MAX_IMAGE_BYTES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("Load() error = nil, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEngineNameCaseInsensitive(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCR_ENGINE", "Vision")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine != ocr.EngineVision {
		t.Errorf("Engine = %q, want vision", cfg.Engine)
	}
}

func TestGetLoggerConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	lc := cfg.GetLoggerConfig()
	if lc.Level != "debug" || lc.Format != "json" || lc.Output != "stdout" {
		t.Errorf("logger config = %+v", lc)
	}
}
