package progress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const unknown = "--"

// Extractor folds one normalized output line into a Sample.
type Extractor interface {
	// Extract updates s from line and reports whether the caller should
	// push a fresh status message.
	Extract(line string, s *Sample) bool
	// Status renders s as a one-line status message.
	Status(s Sample) string
}

var (
	rsyncXfrRe     = regexp.MustCompile(`xfr#(\d+)`)
	rsyncToCheckRe = regexp.MustCompile(`to-ch(?:ec)?k=(\d+)/(\d+)`)
	rsyncPercentRe = regexp.MustCompile(`(\d{1,3})%`)
	rsyncRateRe    = regexp.MustCompile(`(\d+(?:\.\d+)?[kKMGTP]?B/s)`)
	rsyncBytesRe   = regexp.MustCompile(`^\s*([\d,]+)\s+\d{1,3}%`)
)

// Rsync extracts progress from `rsync --info=progress2` output, e.g.
//
//	1,238,099,968  37%   41.20MB/s    0:00:28 (xfr#212, to-chk=628/840)
type Rsync struct{}

func (Rsync) Extract(line string, s *Sample) bool {
	if m := rsyncPercentRe.FindStringSubmatch(line); m != nil {
		if p, err := strconv.Atoi(m[1]); err == nil && p <= 100 {
			s.setPercent(p)
		}
	}
	if m := rsyncRateRe.FindStringSubmatch(line); m != nil {
		s.setThroughput(m[1])
	}
	if m := rsyncBytesRe.FindStringSubmatch(line); m != nil {
		if n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64); err == nil {
			s.setBytes(n)
		}
	}

	xfr := rsyncXfrRe.FindStringSubmatch(line)
	chk := rsyncToCheckRe.FindStringSubmatch(line)
	if xfr == nil || chk == nil {
		return false
	}
	remaining, err1 := strconv.ParseInt(chk[1], 10, 64)
	total, err2 := strconv.ParseInt(chk[2], 10, 64)
	if err1 != nil || err2 != nil || remaining > total {
		return false
	}
	s.setFiles(total-remaining, total)
	return true
}

func (Rsync) Status(s Sample) string {
	files := unknown
	if s.HasFiles() {
		files = fmt.Sprintf("%d/%d", s.FilesDone, s.FilesTotal)
	}
	pct := unknown
	if s.HasPercent() {
		pct = fmt.Sprintf("%d%%", s.Percent)
	}
	rate := unknown
	if s.HasThroughput() {
		rate = s.Throughput
	}
	return fmt.Sprintf("files %s  %s  %s", files, pct, rate)
}

var (
	wimPercentRe = regexp.MustCompile(`\((\d{1,3})%\)`)
	wimPartRe    = regexp.MustCompile(`part (\d+) of (\d+)`)
)

// WimSplit extracts progress from `wimlib-imagex split` output, e.g.
//
//	Splitting WIM: 2113 MiB of 4780 MiB (44%) written, part 1 of 2
type WimSplit struct{}

func (WimSplit) Extract(line string, s *Sample) bool {
	if m := wimPartRe.FindStringSubmatch(line); m != nil {
		part, err1 := strconv.Atoi(m[1])
		parts, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			s.setPart(part, parts)
		}
	}
	m := wimPercentRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	p, err := strconv.Atoi(m[1])
	if err != nil || p > 100 {
		return false
	}
	s.setPercent(p)
	return true
}

func (WimSplit) Status(s Sample) string {
	pct := unknown
	if s.HasPercent() {
		pct = fmt.Sprintf("%d%%", s.Percent)
	}
	if !s.HasPart() {
		return "splitting " + pct
	}
	return fmt.Sprintf("splitting %s  part %d/%d", pct, s.Part, s.Parts)
}
