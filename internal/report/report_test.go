package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/irscan/internal/chain"
)

func sampleOutcomes() []*chain.Outcome {
	return []*chain.Outcome{
		{
			Binary: "bin/libclient.so",
			Markers: []chain.MarkerResult{
				{Marker: "CheckUpdatingSteamResources", Function: "sub_1000", Address: 0x1000, Fingerprint: "00000000deadbeef"},
			},
			Targets: []chain.TargetResult{
				{Target: "CL_DownloadUpdate", Parent: "sub_1000", Address: 0x2000, HasCapture: true, Resolved: true, Function: "sub_2000"},
				{Target: "CL_Helper", Parent: "sub_2000", Depth: 1, Address: 0x3004, HasCapture: true},
			},
			Failures: []chain.Failure{
				{Name: "CL_Helper", Kind: chain.KindUnresolvedAddress, Reason: "0x3004 does not start a function"},
			},
		},
	}
}

func TestLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewLines(&buf, false)

	out := sampleOutcomes()[0]
	l.Located(out.Binary, out.Markers[0])
	l.Matched(out.Binary, out.Targets[0])
	l.Resolved(out.Binary, out.Targets[0])
	l.Matched(out.Binary, out.Targets[1])
	l.Matched(out.Binary, chain.TargetResult{Target: "shape", PatternIndex: 1})
	l.Failed(out.Binary, out.Failures[0])

	assert.Equal(t, strings.Join([]string{
		"~ bin/libclient.so:CheckUpdatingSteamResources => sub_1000 (0x1000)",
		"~ bin/libclient.so:CL_DownloadUpdate => 0x2000",
		"~ bin/libclient.so:CL_DownloadUpdate => sub_2000 (0x2000)",
		"  ~ bin/libclient.so:CL_Helper => 0x3004",
		"~ bin/libclient.so:shape => matched pattern 1",
		"! bin/libclient.so:CL_Helper: 0x3004 does not start a function",
	}, "\n")+"\n", buf.String())
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}

func TestNewTerminalLines_PlainForRedirectedOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewTerminalLines(&buf)
	assert.False(t, l.color)

	out := sampleOutcomes()[0]
	l.Located(out.Binary, out.Markers[0])
	l.Failed(out.Binary, out.Failures[0])
	assert.NotContains(t, buf.String(), "\x1b[")

	f, err := os.CreateTemp(t.TempDir(), "report")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, NewTerminalLines(f).color)
}

func TestRows(t *testing.T) {
	rows := Rows(sampleOutcomes())
	require.Len(t, rows, 4)

	assert.Equal(t, Row{
		Binary:   "bin/libclient.so",
		Kind:     KindMarker,
		Name:     "CheckUpdatingSteamResources",
		Function: "sub_1000",
		Address:  "0x1000",
		Detail:   "00000000deadbeef",
	}, rows[0])
	assert.Equal(t, KindTarget, rows[1].Kind)
	assert.Equal(t, "sub_2000", rows[1].Function)
	assert.Equal(t, "via sub_2000, pattern 0, depth 1", rows[2].Detail)
	assert.Equal(t, KindFailure, rows[3].Kind)
	assert.Equal(t, "unresolved_address: 0x3004 does not start a function", rows[3].Detail)
}

func TestWrite(t *testing.T) {
	outcomes := sampleOutcomes()

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatTable, outcomes))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 5)
		assert.True(t, strings.HasPrefix(lines[0], "BINARY"))
		assert.Contains(t, lines[0], "FUNCTION")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatCSV, outcomes))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 5)
		assert.Equal(t, "BINARY,KIND,NAME,FUNCTION,ADDRESS,DETAIL", lines[0])
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatJSON, outcomes))
		var decoded []chain.Outcome
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 1)
		assert.Equal(t, uint64(0x2000), decoded[0].Targets[0].Address)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatYAML, outcomes))
		assert.Contains(t, buf.String(), "pattern_index: 0")
		var decoded []chain.Outcome
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "sub_2000", decoded[0].Targets[0].Function)
	})

	t.Run("lines", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatLines, outcomes))
		assert.Contains(t, buf.String(), "! bin/libclient.so:CL_Helper")
	})

	t.Run("json empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatJSON, nil))
		assert.Equal(t, "[]\n", buf.String())
	})

	t.Run("unsupported", func(t *testing.T) {
		require.Error(t, Write(&bytes.Buffer{}, OutputFormat("xml"), outcomes))
	})
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, WriteFile(path, FormatCSV, sampleOutcomes()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "BINARY,"))

	err = WriteFile(filepath.Join(t.TempDir(), "missing", "x.csv"), FormatCSV, nil)
	require.Error(t, err)
}

func TestTableFormatter_RejectsNonSlice(t *testing.T) {
	err := (&TableFormatter{}).Format(Row{}, &bytes.Buffer{})
	require.Error(t, err)
}
