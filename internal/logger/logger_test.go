// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/mcfuse/mcfs/cfg"
)

const (
	textTraceString   = "^time=\"[a-zA-Z0-9/:. ]{26}\" severity=TRACE message=\"TestLogs: trace msg\""
	textDebugString   = "^time=\"[a-zA-Z0-9/:. ]{26}\" severity=DEBUG message=\"TestLogs: debug msg\""
	textInfoString    = "^time=\"[a-zA-Z0-9/:. ]{26}\" severity=INFO message=\"TestLogs: info msg\""
	textWarningString = "^time=\"[a-zA-Z0-9/:. ]{26}\" severity=WARNING message=\"TestLogs: warn msg\""
	textErrorString   = "^time=\"[a-zA-Z0-9/:. ]{26}\" severity=ERROR message=\"TestLogs: error msg\""

	jsonTraceString   = `^{"timestamp":{"seconds":\d{10},"nanos":\d{0,9}},"severity":"TRACE","message":"TestLogs: trace msg"}`
	jsonDebugString   = `^{"timestamp":{"seconds":\d{10},"nanos":\d{0,9}},"severity":"DEBUG","message":"TestLogs: debug msg"}`
	jsonInfoString    = `^{"timestamp":{"seconds":\d{10},"nanos":\d{0,9}},"severity":"INFO","message":"TestLogs: info msg"}`
	jsonWarningString = `^{"timestamp":{"seconds":\d{10},"nanos":\d{0,9}},"severity":"WARNING","message":"TestLogs: warn msg"}`
	jsonErrorString   = `^{"timestamp":{"seconds":\d{10},"nanos":\d{0,9}},"severity":"ERROR","message":"TestLogs: error msg"}`
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func redirectLogsToGivenBuffer(buf *bytes.Buffer, format string, level string) {
	factory := &loggerFactory{format: format}
	var programLevel = new(slog.LevelVar)
	setLoggingLevel(level, programLevel)
	defaultLogger = slog.New(factory.createJsonOrTextHandler(buf, programLevel, "TestLogs: "))
	defaultLoggerFactory = factory
}

func fetchLogOutputForSpecifiedSeverityLevel(format, level string) []string {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, format, level)

	fns := []func(){
		func() { Tracef("trace msg") },
		func() { Debugf("debug msg") },
		func() { Infof("info msg") },
		func() { Warnf("warn msg") },
		func() { Errorf("error msg") },
	}

	var output []string
	for _, f := range fns {
		f()
		output = append(output, buf.String())
		buf.Reset()
	}
	return output
}

func validateOutput(t *testing.T, expected, output []string) {
	for i := range output {
		if expected[i] == "" {
			assert.Equal(t, expected[i], output[i])
			continue
		}
		assert.Regexp(t, regexp.MustCompile(expected[i]), output[i])
	}
}

func (s *LoggerTest) TestTextFormatLogs_LevelOFF() {
	validateOutput(s.T(), []string{"", "", "", "", ""},
		fetchLogOutputForSpecifiedSeverityLevel("text", "OFF"))
}

func (s *LoggerTest) TestTextFormatLogs_LevelERROR() {
	validateOutput(s.T(), []string{"", "", "", "", textErrorString},
		fetchLogOutputForSpecifiedSeverityLevel("text", "ERROR"))
}

func (s *LoggerTest) TestTextFormatLogs_LevelWARNING() {
	validateOutput(s.T(), []string{"", "", "", textWarningString, textErrorString},
		fetchLogOutputForSpecifiedSeverityLevel("text", "WARNING"))
}

func (s *LoggerTest) TestTextFormatLogs_LevelINFO() {
	validateOutput(s.T(), []string{"", "", textInfoString, textWarningString, textErrorString},
		fetchLogOutputForSpecifiedSeverityLevel("text", "INFO"))
}

func (s *LoggerTest) TestTextFormatLogs_LevelDEBUG() {
	validateOutput(s.T(), []string{"", textDebugString, textInfoString, textWarningString, textErrorString},
		fetchLogOutputForSpecifiedSeverityLevel("text", "DEBUG"))
}

func (s *LoggerTest) TestTextFormatLogs_LevelTRACE() {
	validateOutput(s.T(), []string{textTraceString, textDebugString, textInfoString, textWarningString, textErrorString},
		fetchLogOutputForSpecifiedSeverityLevel("text", "TRACE"))
}

func (s *LoggerTest) TestJSONFormatLogs_LevelINFO() {
	validateOutput(s.T(), []string{"", "", jsonInfoString, jsonWarningString, jsonErrorString},
		fetchLogOutputForSpecifiedSeverityLevel("json", "INFO"))
}

func (s *LoggerTest) TestJSONFormatLogs_LevelTRACE() {
	validateOutput(s.T(), []string{jsonTraceString, jsonDebugString, jsonInfoString, jsonWarningString, jsonErrorString},
		fetchLogOutputForSpecifiedSeverityLevel("json", "TRACE"))
}

func (s *LoggerTest) TestSetLoggingLevel() {
	testData := []struct {
		inputLevel    string
		expectedLevel slog.Level
	}{
		{"TRACE", LevelTrace},
		{"DEBUG", LevelDebug},
		{"INFO", LevelInfo},
		{"WARNING", LevelWarn},
		{"ERROR", LevelError},
		{"OFF", LevelOff},
	}

	for _, test := range testData {
		v := new(slog.LevelVar)
		setLoggingLevel(test.inputLevel, v)
		assert.Equal(s.T(), test.expectedLevel, v.Level())
	}
}

func (s *LoggerTest) TestInitLogFile() {
	filePath := filepath.Join(s.T().TempDir(), "log.txt")

	c := cfg.LoggingConfig{
		FilePath: cfg.ResolvedPath(filePath),
		Severity: "DEBUG",
		Format:   "text",
		LogRotate: cfg.LogRotateConfig{
			MaxFileSizeMb:   100,
			BackupFileCount: 2,
			Compress:        true,
		},
	}

	err := InitLogFile(c)

	s.Require().NoError(err)
	assert.Equal(s.T(), filePath, defaultLoggerFactory.file.Name())
	assert.Equal(s.T(), "text", defaultLoggerFactory.format)
	assert.Equal(s.T(), "DEBUG", defaultLoggerFactory.level)
	assert.Equal(s.T(), 100, defaultLoggerFactory.logRotateConfig.MaxFileSizeMb)
	assert.Equal(s.T(), 2, defaultLoggerFactory.logRotateConfig.BackupFileCount)
	assert.True(s.T(), defaultLoggerFactory.logRotateConfig.Compress)
	assert.NotNil(s.T(), defaultLoggerFactory.async)

	_, statErr := os.Stat(filePath)
	assert.NoError(s.T(), statErr)
}

func (s *LoggerTest) TestSetLogFormatDefaultsToJSONForUnknownFormat() {
	defaultLoggerFactory = &loggerFactory{
		sysWriter: os.Stderr,
		level:     "INFO",
	}

	SetLogFormat("bogus")

	assert.Equal(s.T(), "bogus", defaultLoggerFactory.format)

	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, defaultLoggerFactory.format, defaultLoggerFactory.level)
	Infof("info msg")
	assert.Regexp(s.T(), regexp.MustCompile(jsonInfoString), buf.String())
}

func (s *LoggerTest) TestStdLoggerWritesThroughAtFixedLevel() {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, "text", "ERROR")

	std := StdLogger(LevelError, "fuse: ")
	std.Print("mount failed")

	assert.Regexp(s.T(), regexp.MustCompile(`severity=ERROR message="TestLogs: fuse: mount failed"`), buf.String())
}
