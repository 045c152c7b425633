package vision

import (
	"fmt"
	"image"
	"sync"

	face "github.com/Kagami/go-face"

	"connect-hub/liveness-service/internal/models"
)

// Mesh-topology indices the detectors consume (§4.3). These follow the
// canonical 478-point MediaPipe Face Mesh layout named in the landmark
// contract; they are exported so detectors.go and tests can reference them
// by name instead of magic numbers.
const (
	MeshLeftEye0 = 33
	MeshLeftEye1 = 160
	MeshLeftEye2 = 158
	MeshLeftEye3 = 133
	MeshLeftEye4 = 153
	MeshLeftEye5 = 144

	MeshRightEye0 = 362
	MeshRightEye1 = 385
	MeshRightEye2 = 387
	MeshRightEye3 = 263
	MeshRightEye4 = 373
	MeshRightEye5 = 380

	MeshMouthLeft  = 61
	MeshMouthRight = 291
	MeshLipUpper   = 13
	MeshLipLower   = 14

	MeshNoseTip = 1

	MeshBrowLeft    = 105
	MeshBrowRight   = 334
	MeshEyelidLeft  = 159
	MeshEyelidRight = 386
)

// LandmarkProvider returns either "no face" or a populated landmark vector
// for a decoded frame, per §4.2's contract.
type LandmarkProvider interface {
	Landmarks(frame *models.Frame) (*models.Landmarks, bool)
}

// DlibLandmarkProvider backs C2 with github.com/Kagami/go-face's dlib
// recognizer. dlib's shape predictor, loaded with a 68-point model, exposes
// Face.Shape — 68 pixel-space landmark points — rather than the 478-point
// Face Mesh topology the detector contract is expressed in. This provider
// carries a fixed index table translating the eight structural locations the
// gesture detectors need (documented in DESIGN.md as the Open Question
// resolution for which native model backs the contract) and normalizes
// pixel coordinates to [0,1] by frame dimensions.
//
// It is constructed lazily and holds the single most-confident face of each
// frame, discarding the rest, matching "only the top face is considered."
// The recognizer is not documented reentrant, so all calls are serialized.
type DlibLandmarkProvider struct {
	modelPath string

	mu  sync.Mutex
	rec *face.Recognizer
}

// NewDlibLandmarkProvider returns a provider that lazily loads dlib's models
// from modelPath on first use.
func NewDlibLandmarkProvider(modelPath string) *DlibLandmarkProvider {
	return &DlibLandmarkProvider{modelPath: modelPath}
}

func (p *DlibLandmarkProvider) ensureLoaded() error {
	if p.rec != nil {
		return nil
	}
	rec, err := face.NewRecognizer(p.modelPath)
	if err != nil {
		return fmt.Errorf("landmark provider: failed to load dlib models: %w", err)
	}
	p.rec = rec
	return nil
}

// Close releases the native dlib resources. Safe to call once at process
// shutdown.
func (p *DlibLandmarkProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rec != nil {
		p.rec.Close()
		p.rec = nil
	}
}

// Landmarks implements LandmarkProvider. Treats the frame as a still image —
// no inter-frame tracking — with max faces = 1 and minimum detection
// confidence enforced by the loaded model's own defaults.
func (p *DlibLandmarkProvider) Landmarks(frame *models.Frame) (*models.Landmarks, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureLoaded(); err != nil {
		return nil, false
	}

	rgba := bgrToRGBA(frame)
	faces, err := p.rec.RecognizeRGBA(rgba.Pix, frame.Width, frame.Height, rgba.Stride)
	if err != nil || len(faces) == 0 {
		return nil, false
	}

	top := mostConfident(faces)
	if len(top.Shape) < 68 {
		return nil, false
	}

	return shapeToMesh(top.Shape, frame.Width, frame.Height), true
}

// mostConfident returns the face with the largest bounding box, used as a
// proxy for detector confidence when go-face does not expose a raw score —
// the largest face in frame is, in a single-subject capture, the claimant's.
func mostConfident(faces []face.Face) face.Face {
	best := faces[0]
	bestArea := area(best.Rectangle)
	for _, f := range faces[1:] {
		if a := area(f.Rectangle); a > bestArea {
			best, bestArea = f, a
		}
	}
	return best
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

func bgrToRGBA(frame *models.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		srcRow := y * frame.Width * 3
		dstRow := img.PixOffset(0, y)
		for x := 0; x < frame.Width; x++ {
			b := frame.Pix[srcRow+x*3]
			g := frame.Pix[srcRow+x*3+1]
			r := frame.Pix[srcRow+x*3+2]
			o := dstRow + x*4
			img.Pix[o] = r
			img.Pix[o+1] = g
			img.Pix[o+2] = b
			img.Pix[o+3] = 0xff
		}
	}
	return img
}

// dlib 68-point shape-predictor indices feeding the mesh mapping. The
// anatomical left/right labels here track the mesh side they are mapped to,
// not the subject's actual left/right — gesture arithmetic is side-symmetric
// (EAR averages both eyes; brow_raise averages both sides) so the pairing
// only needs to keep eye/eyelid/brow triples on the same mesh side.
const (
	dlibLeftEye0 = 36
	dlibLeftEye1 = 37
	dlibLeftEye2 = 38
	dlibLeftEye3 = 39
	dlibLeftEye4 = 40
	dlibLeftEye5 = 41

	dlibRightEye0 = 42
	dlibRightEye1 = 43
	dlibRightEye2 = 44
	dlibRightEye3 = 45
	dlibRightEye4 = 46
	dlibRightEye5 = 47

	dlibNoseTip = 30

	dlibMouthLeftCorner  = 48
	dlibMouthRightCorner = 54
	dlibUpperInnerLip    = 62
	dlibLowerInnerLip    = 66

	// dlib's 68-point brow ranges: 17-21 (one side), 22-26 (other). The mid
	// brow point approximates the single mesh brow landmark.
	dlibBrowMid0a, dlibBrowMid0b = 19, 20
	dlibBrowMid1a, dlibBrowMid1b = 23, 24
)

func shapeToMesh(shape []image.Point, w, h int) *models.Landmarks {
	var lm models.Landmarks
	norm := func(p image.Point) models.Point {
		return models.Point{X: float64(p.X) / float64(w), Y: float64(p.Y) / float64(h)}
	}
	mid := func(a, b image.Point) image.Point {
		return image.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	}

	lm[MeshLeftEye0] = norm(shape[dlibLeftEye0])
	lm[MeshLeftEye1] = norm(shape[dlibLeftEye1])
	lm[MeshLeftEye2] = norm(shape[dlibLeftEye2])
	lm[MeshLeftEye3] = norm(shape[dlibLeftEye3])
	lm[MeshLeftEye4] = norm(shape[dlibLeftEye4])
	lm[MeshLeftEye5] = norm(shape[dlibLeftEye5])

	lm[MeshRightEye0] = norm(shape[dlibRightEye0])
	lm[MeshRightEye1] = norm(shape[dlibRightEye1])
	lm[MeshRightEye2] = norm(shape[dlibRightEye2])
	lm[MeshRightEye3] = norm(shape[dlibRightEye3])
	lm[MeshRightEye4] = norm(shape[dlibRightEye4])
	lm[MeshRightEye5] = norm(shape[dlibRightEye5])

	lm[MeshNoseTip] = norm(shape[dlibNoseTip])

	lm[MeshMouthLeft] = norm(shape[dlibMouthLeftCorner])
	lm[MeshMouthRight] = norm(shape[dlibMouthRightCorner])
	lm[MeshLipUpper] = norm(shape[dlibUpperInnerLip])
	lm[MeshLipLower] = norm(shape[dlibLowerInnerLip])

	lm[MeshEyelidLeft] = norm(mid(shape[dlibLeftEye1], shape[dlibLeftEye2]))
	lm[MeshEyelidRight] = norm(mid(shape[dlibRightEye1], shape[dlibRightEye2]))

	lm[MeshBrowLeft] = norm(mid(shape[dlibBrowMid0a], shape[dlibBrowMid0b]))
	lm[MeshBrowRight] = norm(mid(shape[dlibBrowMid1a], shape[dlibBrowMid1b]))

	return &lm
}
