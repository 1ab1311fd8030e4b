// Package vision locates the on-screen selection cursor and classifies
// the selected relic's equip/favorite/rarity state from raw frames.
package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Box is a detected rectangle in frame coordinates.
type Box struct {
	X, Y, W, H int
}

// SelectionState is the per-frame visual classification of the
// selected cell. Cursor is nil when no qualifying contour was found;
// callers fall back to the previous/default state rather than failing.
type SelectionState struct {
	Cursor     *Box
	Equipped   bool
	Favorited  bool
	Dark       bool
	Brightness float64
}

// State folds the flags into the detector's six-symbol output
// alphabet.
type State string

const (
	StateLight           State = "Light"
	StateDarkEquipped    State = "Dark+E"
	StateDarkFavorited   State = "Dark+F"
	StateDarkEquippedFav State = "Dark+FE"
	StateDarkOther       State = "Dark+O"
	StateCursorNotFound  State = "NoCursor"
)

func (s SelectionState) State() State {
	switch {
	case s.Cursor == nil:
		return StateCursorNotFound
	case !s.Dark:
		return StateLight
	case s.Equipped && s.Favorited:
		return StateDarkEquippedFav
	case s.Equipped:
		return StateDarkEquipped
	case s.Favorited:
		return StateDarkFavorited
	default:
		return StateDarkOther
	}
}

// Config carries every detection threshold. One parametrized detector;
// threshold differences are configuration, not algorithm forks.
type Config struct {
	// Fractional search sub-rectangle; the cursor only ever appears in
	// the relic-grid quadrant.
	ROIStartX float64
	ROIStartY float64
	ROIWidth  float64
	ROIHeight float64

	MinCursorArea  float64
	MaxCursorArea  float64
	AspectRatioMin float64
	AspectRatioMax float64

	CannyLow  float32
	CannyHigh float32

	// TemporalFrames > 1 enables the temporal max projection over that
	// many value-channel frames.
	TemporalFrames int

	BrightnessThreshold   float64
	BrightnessCenterRatio float64

	TemplateMatchThreshold float32
	IconSearchRatio        float64

	// ReferenceCursorWidth converts a detected cursor width into the
	// template rescale factor.
	ReferenceCursorWidth float64

	EquipTemplatePath    string
	FavoriteTemplatePath string
}

func DefaultConfig() Config {
	return Config{
		ROIStartX: 0.46, ROIStartY: 0.19,
		ROIWidth: 0.50, ROIHeight: 0.49,
		MinCursorArea: 2000, MaxCursorArea: 40000,
		AspectRatioMin: 0.85, AspectRatioMax: 1.15,
		CannyLow: 50, CannyHigh: 150,
		TemporalFrames:         5,
		BrightnessThreshold:    50,
		BrightnessCenterRatio:  0.65,
		TemplateMatchThreshold: 0.60,
		IconSearchRatio:        0.35,
		ReferenceCursorWidth:   92.0,
		EquipTemplatePath:      "data/icon_cup.png",
		FavoriteTemplatePath:   "data/icon_bookmark.png",
	}
}

// Detector is an explicitly constructed vision service. Not safe for
// concurrent use: the temporal frame buffer is per-session state.
type Detector struct {
	cfg      Config
	tplEquip gocv.Mat
	tplFav   gocv.Mat
	buffer   []gocv.Mat
}

// NewDetector loads icon templates and prepares the frame buffer.
// Missing template files degrade the equip/favorite signals to
// brightness-only classification rather than failing construction.
func NewDetector(cfg Config) (*Detector, error) {
	d := &Detector{cfg: cfg}
	d.tplEquip = loadGrayTemplate(cfg.EquipTemplatePath)
	d.tplFav = loadGrayTemplate(cfg.FavoriteTemplatePath)
	return d, nil
}

func loadGrayTemplate(path string) gocv.Mat {
	if path == "" {
		return gocv.NewMat()
	}
	m := gocv.IMRead(path, gocv.IMReadGrayScale)
	return m // empty Mat when the file is missing
}

// Close releases native resources. The detector is unusable afterward.
func (d *Detector) Close() {
	d.tplEquip.Close()
	d.tplFav.Close()
	for i := range d.buffer {
		d.buffer[i].Close()
	}
	d.buffer = nil
}

// Detect runs cursor localization and state classification over one
// captured frame.
func (d *Detector) Detect(frame *image.RGBA) (SelectionState, error) {
	if frame == nil {
		return SelectionState{}, errors.New("nil frame")
	}
	rgba, err := gocv.ImageToMatRGBA(frame)
	if err != nil {
		return SelectionState{}, fmt.Errorf("frame to mat: %w", err)
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR)

	return d.DetectMat(bgr)
}

// DetectMat is the Mat-level entry point used by Detect and by tests
// that synthesize frames directly.
func (d *Detector) DetectMat(frame gocv.Mat) (SelectionState, error) {
	box := d.DetectCursor(frame)
	if box == nil {
		return SelectionState{}, nil
	}

	scale := float64(box.W) / d.cfg.ReferenceCursorWidth
	state := d.classifyCell(frame, *box, scale)
	state.Cursor = box
	return state, nil
}

// DetectCursor locates the selection rectangle inside the configured
// ROI. Returns nil when no contour survives filtering.
func (d *Detector) DetectCursor(frame gocv.Mat) *Box {
	w := frame.Cols()
	h := frame.Rows()

	rx := clampInt(int(float64(w)*d.cfg.ROIStartX), 0, w)
	ry := clampInt(int(float64(h)*d.cfg.ROIStartY), 0, h)
	rw := clampInt(int(float64(w)*d.cfg.ROIWidth), 0, w-rx)
	rh := clampInt(int(float64(h)*d.cfg.ROIHeight), 0, h-ry)
	if rw <= 0 || rh <= 0 {
		return nil
	}

	roi := frame.Region(image.Rect(rx, ry, rx+rw, ry+rh))
	defer roi.Close()

	value := gocv.NewMat()
	defer value.Close()
	valueChannel(roi, &value)

	projection := gocv.NewMat()
	defer projection.Close()
	d.project(value, &projection)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(projection, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, d.cfg.CannyLow, d.cfg.CannyHigh)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	gocv.Dilate(edges, &edges, kernel)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	// Tie-break: the most recently moved-to cursor is the lowest, then
	// rightmost candidate in the grid's right/down scan order.
	var best *Box
	bestScore := -1
	for i := 0; i < contours.Size(); i++ {
		cnt := contours.At(i)
		area := gocv.ContourArea(cnt)
		if area < d.cfg.MinCursorArea || area > d.cfg.MaxCursorArea {
			continue
		}
		peri := gocv.ArcLength(cnt, true)
		approx := gocv.ApproxPolyDP(cnt, 0.04*peri, true)
		corners := approx.Size()
		approx.Close()
		if corners != 4 {
			continue
		}
		rect := gocv.BoundingRect(cnt)
		cw, ch := rect.Dx(), rect.Dy()
		if ch == 0 {
			continue
		}
		asp := float64(cw) / float64(ch)
		if asp < d.cfg.AspectRatioMin || asp > d.cfg.AspectRatioMax {
			continue
		}
		score := rect.Min.Y*10000 + rect.Min.X
		if score > bestScore {
			bestScore = score
			best = &Box{X: rect.Min.X + rx, Y: rect.Min.Y + ry, W: cw, H: ch}
		}
	}
	return best
}

// project writes the temporal max projection of value into dst,
// maintaining the bounded FIFO frame buffer. With TemporalFrames <= 1
// the current frame passes through untouched.
func (d *Detector) project(value gocv.Mat, dst *gocv.Mat) {
	if d.cfg.TemporalFrames <= 1 {
		value.CopyTo(dst)
		return
	}

	// Frames of a different geometry (window resize) invalidate the
	// whole buffer.
	if len(d.buffer) > 0 &&
		(d.buffer[0].Cols() != value.Cols() || d.buffer[0].Rows() != value.Rows()) {
		d.ResetHistory()
	}

	d.buffer = append(d.buffer, value.Clone())
	if len(d.buffer) > d.cfg.TemporalFrames {
		d.buffer[0].Close()
		d.buffer = d.buffer[1:]
	}

	d.buffer[0].CopyTo(dst)
	for _, frame := range d.buffer[1:] {
		gocv.Max(*dst, frame, dst)
	}
}

// ResetHistory drops the temporal buffer; call when the view changes
// discontinuously (page switch, filter re-apply).
func (d *Detector) ResetHistory() {
	for i := range d.buffer {
		d.buffer[i].Close()
	}
	d.buffer = d.buffer[:0]
}

// classifyCell inspects the cell under the cursor: targeted icon
// template corners, then center brightness.
func (d *Detector) classifyCell(frame gocv.Mat, box Box, scale float64) SelectionState {
	const padding = 2
	x0 := clampInt(box.X+padding, 0, frame.Cols())
	y0 := clampInt(box.Y+padding, 0, frame.Rows())
	x1 := clampInt(box.X+box.W-padding, 0, frame.Cols())
	y1 := clampInt(box.Y+box.H-padding, 0, frame.Rows())
	if x1 <= x0 || y1 <= y0 {
		return SelectionState{Dark: true}
	}

	cell := frame.Region(image.Rect(x0, y0, x1, y1))
	defer cell.Close()
	cw, ch := cell.Cols(), cell.Rows()

	// Equip icon lives in the top-left corner, favorite icon in the
	// top-right; searching only those corners keeps false positives
	// from cell artwork out.
	ratio := d.cfg.IconSearchRatio
	iconW := int(float64(cw) * ratio)
	iconH := int(float64(ch) * ratio)

	equipped := false
	favorited := false
	if iconW > 0 && iconH > 0 {
		equipZone := cell.Region(image.Rect(0, 0, iconW, iconH))
		equipped = d.matchIcon(equipZone, d.tplEquip, scale)
		equipZone.Close()

		favZone := cell.Region(image.Rect(cw-iconW, 0, cw, iconH))
		favorited = d.matchIcon(favZone, d.tplFav, scale)
		favZone.Close()
	}

	brightness := centerBrightness(cell, d.cfg.BrightnessCenterRatio)

	return SelectionState{
		Equipped:   equipped,
		Favorited:  favorited,
		Dark:       ClassifyDark(equipped, favorited, brightness, d.cfg.BrightnessThreshold),
		Brightness: brightness,
	}
}

// ClassifyDark applies the rarity rule: the equip/favorite icons only
// ever render on dark relics, so icon presence overrides brightness.
func ClassifyDark(equipped, favorited bool, brightness, threshold float64) bool {
	if equipped || favorited {
		return true
	}
	return brightness <= threshold
}

// matchIcon runs normalized cross-correlation of the template, rescaled
// by the cursor-derived factor, over the search zone.
func (d *Detector) matchIcon(zone gocv.Mat, tpl gocv.Mat, scale float64) bool {
	if tpl.Empty() || zone.Empty() {
		return false
	}
	tw := int(float64(tpl.Cols()) * scale)
	th := int(float64(tpl.Rows()) * scale)
	if tw < 1 || th < 1 || tw > zone.Cols() || th > zone.Rows() {
		return false
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(tpl, &scaled, image.Pt(tw, th), 0, 0, gocv.InterpolationLinear)

	gray := gocv.NewMat()
	defer gray.Close()
	if zone.Channels() > 1 {
		gocv.CvtColor(zone, &gray, gocv.ColorBGRToGray)
	} else {
		zone.CopyTo(&gray)
	}

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(gray, scaled, &result, gocv.TmCcoeffNormed, mask)
	_, maxVal, _, _ := gocv.MinMaxLoc(result)
	return maxVal > d.cfg.TemplateMatchThreshold
}

// centerBrightness is the mean HSV value channel of a centered
// fractional patch: large enough to shrug off local glare, inset
// enough to exclude the cell border.
func centerBrightness(cell gocv.Mat, ratio float64) float64 {
	cw, ch := cell.Cols(), cell.Rows()
	offset := (1.0 - ratio) / 2.0
	cx := int(float64(cw) * offset)
	cy := int(float64(ch) * offset)
	pw := int(float64(cw) * ratio)
	ph := int(float64(ch) * ratio)
	if pw <= 0 || ph <= 0 {
		return 0
	}

	patch := cell.Region(image.Rect(cx, cy, cx+pw, cy+ph))
	defer patch.Close()

	value := gocv.NewMat()
	defer value.Close()
	valueChannel(patch, &value)
	return value.Mean().Val1
}

// valueChannel extracts the HSV value plane of a BGR Mat; grayscale
// input passes through.
func valueChannel(src gocv.Mat, dst *gocv.Mat) {
	if src.Channels() == 1 {
		src.CopyTo(dst)
		return
	}
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(src, &hsv, gocv.ColorBGRToHSV)
	channels := gocv.Split(hsv)
	for i, c := range channels {
		if i == 2 {
			c.CopyTo(dst)
		}
		c.Close()
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
