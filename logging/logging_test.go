package logging

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputSplitterRoutesByLevel(t *testing.T) {
	splitter := outputSplitter{}

	tests := []struct {
		name       string
		logMessage []byte
		toStderr   bool
	}{
		{"ErrorLevel", []byte(`time="2024-01-15T10:30:00Z" level=error msg="boom"`), true},
		{"FatalLevel", []byte(`time="2024-01-15T10:30:00Z" level=fatal msg="boom"`), true},
		{"InfoLevel", []byte(`time="2024-01-15T10:30:00Z" level=info msg="ok"`), false},
		{"WarnLevel", []byte(`time="2024-01-15T10:30:00Z" level=warning msg="careful"`), false},
		{"DebugLevel", []byte(`time="2024-01-15T10:30:00Z" level=debug msg="details"`), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdoutR, stdoutW, err := os.Pipe()
			require.NoError(t, err)
			stderrR, stderrW, err := os.Pipe()
			require.NoError(t, err)

			origStdout, origStderr := os.Stdout, os.Stderr
			os.Stdout, os.Stderr = stdoutW, stderrW
			n, err := splitter.Write(tt.logMessage)
			os.Stdout, os.Stderr = origStdout, origStderr
			stdoutW.Close()
			stderrW.Close()

			gotStdout, _ := io.ReadAll(stdoutR)
			gotStderr, _ := io.ReadAll(stderrR)

			assert.NoError(t, err)
			assert.Equal(t, len(tt.logMessage), n)
			if tt.toStderr {
				assert.Equal(t, tt.logMessage, gotStderr)
				assert.Empty(t, gotStdout)
			} else {
				assert.Equal(t, tt.logMessage, gotStdout)
				assert.Empty(t, gotStderr)
			}
		})
	}
}

func TestConfigureDefaultsToInfoOnInvalidLevel(t *testing.T) {
	Configure("not-a-level", "text")
	assert.Equal(t, "info", Logger.GetLevel().String())
}

func TestEntryTagsComponent(t *testing.T) {
	entry := Entry("worker")
	assert.Equal(t, "worker", entry.Data["component"])
}

func TestMessageIDTagsEntry(t *testing.T) {
	entry := MessageID(Entry("worker"), "ARCHBR001")
	assert.Equal(t, "ARCHBR001", entry.Data["MESSAGE_ID"])
}
