package lut_test

import (
	"strings"
	"testing"

	"github.com/e7canasta/chroma-cam/lut"
)

const validCube = `# a test LUT
TITLE "Warm Look"
LUT_3D_SIZE 2
DOMAIN_MIN 0.0 0.0 0.0
DOMAIN_MAX 1.0 1.0 1.0
0.0 0.0 0.0
1.0 0.0 0.0
0.0 1.0 0.0
1.0 1.0 0.0
0.0 0.0 1.0
1.0 0.0 1.0
0.0 1.0 1.0
1.0 1.0 1.0
`

// TestParseCube validates directive handling on a well-formed file.
func TestParseCube(t *testing.T) {
	f, err := lut.ParseCube(strings.NewReader(validCube), "fallback")
	if err != nil {
		t.Fatalf("ParseCube() failed: %v", err)
	}
	if f.Name() != "Warm Look" {
		t.Errorf("Name()=%q, want TITLE value %q", f.Name(), "Warm Look")
	}
	if f.Kind() != lut.KindCube {
		t.Errorf("Kind()=%v, want cube", f.Kind())
	}
}

// TestParseCubeFallbackName validates the name parameter is used when no
// TITLE directive is present.
func TestParseCubeFallbackName(t *testing.T) {
	data := strings.Replace(validCube, "TITLE \"Warm Look\"\n", "", 1)
	f, err := lut.ParseCube(strings.NewReader(data), "from-filename")
	if err != nil {
		t.Fatalf("ParseCube() failed: %v", err)
	}
	if f.Name() != "from-filename" {
		t.Errorf("Name()=%q, want %q", f.Name(), "from-filename")
	}
}

// TestParseCubeErrors validates rejection of malformed input with
// line-numbered diagnostics.
func TestParseCubeErrors(t *testing.T) {
	cases := map[string]string{
		"1D LUT":           "LUT_1D_SIZE 16\n0.0 0.0 0.0\n",
		"data before size": "0.0 0.0 0.0\n",
		"bad size":         "LUT_3D_SIZE banana\n",
		"size too small":   "LUT_3D_SIZE 1\n",
		"wrong arity":      "LUT_3D_SIZE 2\n0.0 0.0\n",
		"bad value":        "LUT_3D_SIZE 2\n0.0 0.0 zebra\n",
		"missing size":     "# nothing here\n",
		"short table":      "LUT_3D_SIZE 2\n0.0 0.0 0.0\n",
	}
	for name, data := range cases {
		if _, err := lut.ParseCube(strings.NewReader(data), "bad"); err == nil {
			t.Errorf("%s: ParseCube() succeeded, want error", name)
		}
	}
}
