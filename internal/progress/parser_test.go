package progress_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/winstick/internal/progress"
)

const rsyncStream = "" +
	"          0   0%    0.00kB/s    0:00:00 (xfr#0, ir-chk=1000/1001)\r" +
	"    524,288   5%   12.00MB/s    0:00:08 (xfr#3, to-chk=97/100)\r" +
	"  5,242,880  50%   40.00MB/s    0:00:01 (xfr#50, to-chk=50/100)\n" +
	" 10,485,760 100%   41.10MB/s    0:00:00 (xfr#100, to-chk=0/100)\n" +
	"\n" +
	"sent 10,490,000 bytes  received 1,934 bytes\n"

func TestParser_RsyncUpdates(t *testing.T) {
	t.Parallel()

	var updates []string
	p := progress.NewParser(progress.Rsync{}, func(msg string) {
		updates = append(updates, msg)
	})

	var log bytes.Buffer
	require.NoError(t, p.Consume(strings.NewReader(rsyncStream), &log))

	assert.Equal(t, rsyncStream, log.String(), "raw output must reach the log unmodified")
	assert.Equal(t, []string{
		"files 3/100  5%  12.00MB/s",
		"files 50/100  50%  40.00MB/s",
		"files 100/100  100%  41.10MB/s",
	}, updates)

	s := p.Sample()
	assert.Equal(t, int64(100), s.FilesDone)
	assert.Equal(t, int64(100), s.FilesTotal)
	assert.Equal(t, int64(10485760), s.BytesDone)
}

func TestParser_FieldsNeverRegress(t *testing.T) {
	t.Parallel()

	var last string
	p := progress.NewParser(progress.Rsync{}, func(msg string) { last = msg })

	p.Feed("  1,000  10%   9.50MB/s    0:00:10 (xfr#1, to-chk=9/10)")
	assert.Equal(t, "files 1/10  10%  9.50MB/s", last)

	// No throughput and no percentage on this line.
	p.Feed("(xfr#2, to-chk=8/10)")
	assert.Equal(t, "files 2/10  10%  9.50MB/s", last)
	assert.Equal(t, "9.50MB/s", p.Sample().Throughput)
}

func TestParser_NeedsBothCounters(t *testing.T) {
	t.Parallel()

	calls := 0
	p := progress.NewParser(progress.Rsync{}, func(string) { calls++ })

	p.Feed("  1,000  10%   9.50MB/s    0:00:10 (xfr#1)")
	p.Feed("  1,000  10%   9.50MB/s    0:00:10 (to-chk=9/10)")
	p.Feed("  1,000  10%   9.50MB/s    0:00:10 (xfr#1, ir-chk=9/10)")
	assert.Zero(t, calls)

	// Percent and rate were still recorded for later lines.
	s := p.Sample()
	assert.True(t, s.HasPercent())
	assert.True(t, s.HasThroughput())
	assert.False(t, s.HasFiles())
}

func TestRsyncStatus_UnknownFields(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "files --  --  --", progress.Rsync{}.Status(progress.Sample{}))
}

func TestParser_WimSplit(t *testing.T) {
	t.Parallel()

	stream := "Splitting WIM: 0 MiB of 4780 MiB (0%) written, part 1 of 2\r" +
		"Splitting WIM: 2113 MiB of 4780 MiB (44%) written, part 1 of 2\r" +
		"Splitting WIM: 4780 MiB of 4780 MiB (100%) written, part 2 of 2\n" +
		"Finished splitting \"install.wim\"\n"

	var updates []string
	p := progress.NewParser(progress.WimSplit{}, func(msg string) {
		updates = append(updates, msg)
	})
	var log bytes.Buffer
	require.NoError(t, p.Consume(strings.NewReader(stream), &log))

	assert.Equal(t, stream, log.String())
	require.Len(t, updates, 3)
	assert.Equal(t, "splitting 44%  part 1/2", updates[1])
	assert.Equal(t, 2, p.Sample().Parts)
}

func TestParser_OversizedLineStillDrainsToLog(t *testing.T) {
	t.Parallel()

	huge := strings.Repeat("x", 2<<20)
	input := huge + "\n(xfr#1, to-chk=0/1)\n"

	p := progress.NewParser(progress.Rsync{}, nil)
	var log bytes.Buffer
	err := p.Consume(strings.NewReader(input), &log)

	require.Error(t, err)
	assert.Equal(t, len(input), log.Len())
}
