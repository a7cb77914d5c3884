package lut

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseCube reads a filter in the Adobe/Resolve .cube text format.
//
// Supported directives: TITLE, LUT_3D_SIZE, DOMAIN_MIN, DOMAIN_MAX.
// 1D LUTs (LUT_1D_SIZE) are rejected. Data rows are three floats, red
// index varying fastest. The name parameter is used when no TITLE is
// present.
func ParseCube(r io.Reader, name string) (*Filter, error) {
	var (
		title     = name
		size      = 0
		domainMin = [3]float32{0, 0, 0}
		domainMax = [3]float32{1, 1, 1}
		table     []float32
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch strings.ToUpper(fields[0]) {
		case "TITLE":
			title = strings.Trim(strings.TrimSpace(line[len(fields[0]):]), `"`)

		case "LUT_3D_SIZE":
			if len(fields) != 2 {
				return nil, fmt.Errorf("lut: cube line %d: LUT_3D_SIZE wants one argument", lineNo)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 2 {
				return nil, fmt.Errorf("lut: cube line %d: invalid LUT_3D_SIZE %q", lineNo, fields[1])
			}
			size = n
			table = make([]float32, 0, n*n*n*3)

		case "LUT_1D_SIZE":
			return nil, fmt.Errorf("lut: cube line %d: 1D LUTs are not supported", lineNo)

		case "DOMAIN_MIN":
			if err := parseTriple(fields, &domainMin); err != nil {
				return nil, fmt.Errorf("lut: cube line %d: %w", lineNo, err)
			}

		case "DOMAIN_MAX":
			if err := parseTriple(fields, &domainMax); err != nil {
				return nil, fmt.Errorf("lut: cube line %d: %w", lineNo, err)
			}

		default:
			// Data row.
			if size == 0 {
				return nil, fmt.Errorf("lut: cube line %d: data before LUT_3D_SIZE", lineNo)
			}
			if len(fields) != 3 {
				return nil, fmt.Errorf("lut: cube line %d: expected 3 values, got %d", lineNo, len(fields))
			}
			for _, s := range fields {
				v, err := strconv.ParseFloat(s, 32)
				if err != nil {
					return nil, fmt.Errorf("lut: cube line %d: bad value %q", lineNo, s)
				}
				table = append(table, float32(v))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("lut: reading cube data: %w", err)
	}

	if size == 0 {
		return nil, fmt.Errorf("lut: cube %q: missing LUT_3D_SIZE", name)
	}
	if want := size * size * size * 3; len(table) != want {
		return nil, fmt.Errorf("lut: cube %q: expected %d values for size %d, got %d",
			name, want, size, len(table))
	}

	f, err := NewCube(title, size, table)
	if err != nil {
		return nil, err
	}
	f.domainMin = domainMin
	f.domainMax = domainMax
	return f, nil
}

// LoadCubeFile parses a .cube file from disk. The filter name defaults to
// the file's base name without extension.
func LoadCubeFile(path string) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lut: open %s: %w", path, err)
	}
	defer file.Close()

	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return ParseCube(file, name)
}

func parseTriple(fields []string, out *[3]float32) error {
	if len(fields) != 4 {
		return fmt.Errorf("%s wants three arguments", fields[0])
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i+1], 32)
		if err != nil {
			return fmt.Errorf("%s: bad value %q", fields[0], fields[i+1])
		}
		out[i] = float32(v)
	}
	return nil
}
