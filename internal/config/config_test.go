package config_test

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lc/stampede/internal/config"
)

type ConfigTestSuite struct {
	suite.Suite
	fs       mockFS
	provider config.Provider
}

type mockFS struct {
	files map[string]string
}

func (m mockFS) Stat(path string) (os.FileInfo, error) {
	if _, ok := m.files[path]; !ok {
		return nil, os.ErrNotExist
	}
	return nil, nil
}

func (m mockFS) MkdirAll(_ string, _ os.FileMode) error {
	return nil
}

func (m mockFS) Open(path string) (*os.File, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	tmp, err := os.CreateTemp("", "mock-*") // caller cleans up in t.Cleanup
	if err != nil {
		return nil, err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, err
	}
	return tmp, nil
}

func (m mockFS) WriteFile(path string, content []byte, _ os.FileMode) error {
	m.files[path] = string(content)
	return nil
}

func (s *ConfigTestSuite) SetupTest() {
	s.fs = mockFS{
		files: make(map[string]string),
	}
	s.provider = config.NewWithPath(s.fs, "test/config.yaml")
}

func (s *ConfigTestSuite) TestLoadDefaultWhenNoFile() {
	cfg, err := s.provider.Load()

	s.Require().NoError(err)
	s.Equal(config.DefaultTimeout, cfg.Scan.Timeout)
	s.Equal(config.DefaultConcurrency, cfg.Scan.Concurrency)
	s.Equal(config.DefaultRecordType, cfg.Scan.RecordType)
	s.Equal(config.DefaultPolicy, cfg.Scan.Policy)
	s.Equal(config.DefaultFormat, cfg.Scan.Format)
	s.Zero(cfg.Scan.QPS)
}

func (s *ConfigTestSuite) TestLoadValidConfig() {
	s.fs.files["test/config.yaml"] = `
scan:
  timeout: 5s
  concurrency: 250
  record_type: AAAA
  policy: race
  qps: 1000
  format: json
`
	cfg, err := s.provider.Load()

	s.Require().NoError(err)
	s.Equal(5*time.Second, cfg.Scan.Timeout)
	s.Equal(250, cfg.Scan.Concurrency)
	s.Equal("AAAA", cfg.Scan.RecordType)
	s.Equal("race", cfg.Scan.Policy)
	s.Equal(1000, cfg.Scan.QPS)
	s.Equal("json", cfg.Scan.Format)
}

func (s *ConfigTestSuite) TestPartialConfigGetsDefaults() {
	s.fs.files["test/config.yaml"] = `
scan:
  concurrency: 10
`
	cfg, err := s.provider.Load()

	s.Require().NoError(err)
	s.Equal(10, cfg.Scan.Concurrency)
	s.Equal(config.DefaultTimeout, cfg.Scan.Timeout)
	s.Equal(config.DefaultRecordType, cfg.Scan.RecordType)
	s.Equal(config.DefaultPolicy, cfg.Scan.Policy)
	s.Equal(config.DefaultFormat, cfg.Scan.Format)
}

func (s *ConfigTestSuite) TestValidation() {
	testCases := []struct {
		name        string
		config      config.Config
		expectedErr string
	}{
		{
			name: "timeout too small",
			config: config.Config{Scan: config.ScanConfig{
				Timeout: 10 * time.Millisecond, Concurrency: 10,
				RecordType: "A", Policy: "roundrobin", Format: "text",
			}},
			expectedErr: "timeout must be at least 100ms",
		},
		{
			name: "negative concurrency",
			config: config.Config{Scan: config.ScanConfig{
				Timeout: time.Second, Concurrency: -1,
				RecordType: "A", Policy: "roundrobin", Format: "text",
			}},
			expectedErr: "concurrency must be at least 1",
		},
		{
			name: "unknown record type",
			config: config.Config{Scan: config.ScanConfig{
				Timeout: time.Second, Concurrency: 10,
				RecordType: "ZZ", Policy: "roundrobin", Format: "text",
			}},
			expectedErr: "unknown record type",
		},
		{
			name: "unknown policy",
			config: config.Config{Scan: config.ScanConfig{
				Timeout: time.Second, Concurrency: 10,
				RecordType: "A", Policy: "fastest", Format: "text",
			}},
			expectedErr: "unknown policy",
		},
		{
			name: "unknown format",
			config: config.Config{Scan: config.ScanConfig{
				Timeout: time.Second, Concurrency: 10,
				RecordType: "A", Policy: "roundrobin", Format: "xml",
			}},
			expectedErr: "unknown output format",
		},
		{
			name: "negative qps",
			config: config.Config{Scan: config.ScanConfig{
				Timeout: time.Second, Concurrency: 10,
				RecordType: "A", Policy: "roundrobin", Format: "text", QPS: -1,
			}},
			expectedErr: "qps cannot be negative",
		},
		{
			name: "valid",
			config: config.Config{Scan: config.ScanConfig{
				Timeout: time.Second, Concurrency: 10,
				RecordType: "A", Policy: "roundrobin", Format: "text", QPS: 500,
			}},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			err := tc.config.Validate()
			if tc.expectedErr == "" {
				s.NoError(err)
				return
			}
			s.Require().Error(err)
			s.ErrorContains(err, tc.expectedErr)
		})
	}
}

func (s *ConfigTestSuite) TestInvalidConfigRejectedOnLoad() {
	s.fs.files["test/config.yaml"] = `
scan:
  policy: fastest
`
	_, err := s.provider.Load()
	s.ErrorIs(err, config.ErrInvalidConfig)
}

func (s *ConfigTestSuite) TestMalformedYAML() {
	s.fs.files["test/config.yaml"] = "scan: [not a map"

	_, err := s.provider.Load()
	s.Error(err)
	s.ErrorContains(err, "decoding config file")
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
