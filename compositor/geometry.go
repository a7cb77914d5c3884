package compositor

import "image"

// Fixed portrait framing: width:height = 9:16 regardless of the ambient
// container's orientation.
const (
	aspectW = 9
	aspectH = 16
)

// Insets shrink the usable container area before the aspect framing is
// derived.
type Insets struct {
	Top    int
	Left   int
	Bottom int
	Right  int
}

// portraitFrame derives the content rect for a container of the given size.
//
// Policy: the content is always framed 9:16 portrait. In a portrait
// container the width is the sizing reference; when the container is wider
// than tall the framing pivots to use the height instead. Either way, if
// the derived size would overflow the opposite dimension it is clamped so
// that dimension exactly fills the available space. The rect is centered.
func portraitFrame(container image.Point, in Insets) image.Rectangle {
	availW := container.X - in.Left - in.Right
	availH := container.Y - in.Top - in.Bottom
	if availW <= 0 || availH <= 0 {
		return image.Rectangle{}
	}

	var w, h int
	if availW > availH {
		// Landscape container: pivot to height as the sizing reference.
		h = availH
		w = h * aspectW / aspectH
		if w > availW {
			w = availW
			h = w * aspectH / aspectW
		}
	} else {
		w = availW
		h = w * aspectH / aspectW
		if h > availH {
			h = availH
			w = h * aspectW / aspectH
		}
	}

	x := in.Left + (availW-w)/2
	y := in.Top + (availH-h)/2
	return image.Rect(x, y, x+w, y+h)
}
