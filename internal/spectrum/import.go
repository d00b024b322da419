package spectrum

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Import filters for spectrometer export files. Supported formats:
// plain two-column xy/txt files (whitespace or comma delimited) and
// Omicron EIS txt files containing one or more regions.

var (
	simpleXYLine = regexp.MustCompile(`^\d+\.\d+,\d+\s*$`)
	eisRegion    = regexp.MustCompile(`^Region.*`)
	eisSkipOnce  = regexp.MustCompile(`^Layer.*`)
	eisSkipBlock = regexp.MustCompile(`^[0-9]+\s*False.*`)
)

// ParseFile checks the file extension and first line and calls the
// matching parser. One file may yield several spectra.
func ParseFile(fname string) ([]*Spectrum, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("failed to open spectrum file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	firstLine, _ := reader.ReadString('\n')
	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("failed to rewind spectrum file: %w", err)
	}

	var spectra []*Spectrum
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".txt":
		if strings.Contains(firstLine, "Region") {
			spectra, err = parseEISTxt(f, fname)
		} else if simpleXYLine.MatchString(firstLine) {
			spectra, err = parseSimpleXY(f, fname, ",")
		}
	case ".xy":
		delim := ""
		if simpleXYLine.MatchString(firstLine) {
			delim = ","
		}
		spectra, err = parseSimpleXY(f, fname, delim)
	}
	if err != nil {
		return nil, err
	}
	if len(spectra) == 0 {
		return nil, fmt.Errorf("could not parse file %q", fname)
	}
	return spectra, nil
}

// parseSimpleXY reads the most simple x, y file with no header.
// delim selects the column separator; empty means any whitespace.
func parseSimpleXY(f *os.File, fname, delim string) ([]*Spectrum, error) {
	var energy, intensity []float64

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var fields []string
		if delim == "" {
			fields = strings.Fields(line)
		} else {
			fields = strings.Split(line, delim)
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s:%d: expected two columns, got %d", fname, lineNo, len(fields))
		}
		e, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: malformed energy value: %w", fname, lineNo, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: malformed intensity value: %w", fname, lineNo, err)
		}
		energy = append(energy, e)
		intensity = append(intensity, y)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read spectrum file: %w", err)
	}

	s, err := New("S XY", energy, intensity)
	if err != nil {
		return nil, err
	}
	s.Filename = fname
	s.Notes = "file " + filepath.Base(fname)
	return []*Spectrum{s}, nil
}

// parseEISTxt splits an Omicron EIS txt file into its regions and
// parses each as one spectrum.
func parseEISTxt(f *os.File, fname string) ([]*Spectrum, error) {
	var blocks [][]string
	doSkip := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case eisRegion.MatchString(line):
			blocks = append(blocks, nil)
			doSkip = false
		case eisSkipBlock.MatchString(line):
			doSkip = true
		case eisSkipOnce.MatchString(line):
			continue
		}
		if !doSkip && len(blocks) > 0 {
			blocks[len(blocks)-1] = append(blocks[len(blocks)-1], line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read EIS file: %w", err)
	}

	var spectra []*Spectrum
	for _, block := range blocks {
		s, err := parseEISRegion(block, fname)
		if err != nil {
			return nil, err
		}
		spectra = append(spectra, s)
	}
	return spectra, nil
}

// parseEISRegion parses one region block: a four-line header followed
// by two data columns.
func parseEISRegion(lines []string, fname string) (*Spectrum, error) {
	const headerLines = 4
	if len(lines) <= headerLines {
		return nil, fmt.Errorf("EIS region in %q too short", fname)
	}

	header := strings.Split(lines[1], "\t")
	var energy, intensity []float64
	for _, line := range lines[headerLines:] {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		e, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed EIS energy value %q: %w", fields[0], err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed EIS intensity value %q: %w", fields[1], err)
		}
		energy = append(energy, e)
		intensity = append(intensity, y)
	}

	region := eisHeaderField(header, 0)
	s, err := New("S "+region, energy, intensity)
	if err != nil {
		return nil, err
	}
	s.Filename = fname
	s.Sweeps, _ = strconv.Atoi(eisHeaderField(header, 6))
	s.DwellTime, _ = strconv.ParseFloat(eisHeaderField(header, 7), 64)
	s.PassEnergy, _ = strconv.ParseFloat(eisHeaderField(header, 9), 64)
	s.Notes = eisHeaderField(header, 12)
	return s, nil
}

func eisHeaderField(header []string, i int) string {
	if i >= len(header) {
		return ""
	}
	return strings.TrimSpace(header[i])
}
