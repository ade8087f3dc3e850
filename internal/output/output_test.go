package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("📂", "Reading records.mrc")

	// Then: output contains icon and message
	assert.Equal(t, "📂 Reading records.mrc\n", buf.String())
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "continued")
	assert.Equal(t, "   continued\n", buf.String())
}

func TestWriter_Success_PrintsCheckmark(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Successf("Indexed %d records", 12)

	output := buf.String()
	assert.Contains(t, output, "✅")
	assert.Contains(t, output, "Indexed 12 records")
}

func TestWriter_Warning_PrintsWarningIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Warningf("Record %s not tracked", "ocm1")

	output := buf.String()
	assert.Contains(t, output, "⚠️")
	assert.Contains(t, output, "Record ocm1 not tracked")
}

func TestWriter_Error_PrintsErrorIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Error("Failed to open index")

	output := buf.String()
	assert.Contains(t, output, "❌")
	assert.Contains(t, output, "Failed to open index")
}

func TestWriter_Heading(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Heading("ocm0001")
	assert.Equal(t, "== ocm0001 ==\n", buf.String())
}

func TestWriter_Fields_AlignsAndSkipsEmpty(t *testing.T) {
	// Given: a document with one empty field
	fields := map[string][]string{
		"id":          {"ocm1"},
		"topic_facet": {"Maps", "History"},
		"fulltext":    nil,
	}
	buf := &bytes.Buffer{}

	// When: listing the fields in a fixed order
	New(buf).Fields([]string{"id", "fulltext", "topic_facet"}, func(name string) []string {
		return fields[name]
	})

	// Then: names are padded to the longest printed name
	want := "  id           ocm1\n" +
		"  topic_facet  Maps | History\n"
	assert.Equal(t, want, buf.String())
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Newline()
	assert.Equal(t, "\n", buf.String())
}
