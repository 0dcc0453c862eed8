package models

// SelectionRegion is a rectangle in page viewport coordinates (CSS pixels)
// together with the device pixel ratio in effect when it was picked.
type SelectionRegion struct {
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	DevicePixelRatio float64 `json:"dpr"`
}

// Scaled returns the region in device pixels. A non-positive ratio is treated as 1.
func (r SelectionRegion) Scaled() (x, y, w, h int) {
	dpr := r.DevicePixelRatio
	if dpr <= 0 {
		dpr = 1
	}
	return int(r.X*dpr + 0.5), int(r.Y*dpr + 0.5), int(r.Width*dpr + 0.5), int(r.Height*dpr + 0.5)
}
