package inference

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"attendance/internal/config"
	"attendance/internal/embeddings"
	"attendance/internal/logger"
	"attendance/internal/models"
)

const embeddingDim = 512

// arcFaceTemplate is the canonical 112x112 landmark layout the embedder was
// trained against. Source landmarks are warped onto these before encoding.
var arcFaceTemplate = []gocv.Point2f{
	{X: 38.2946, Y: 51.6963}, // eye nearest the image left edge
	{X: 73.5318, Y: 51.5014}, // eye nearest the image right edge
	{X: 56.0252, Y: 71.7366}, // nose tip
}

// Engine runs face detection and embedding extraction on decoded frames.
// The underlying networks are not safe for concurrent forward passes, so
// all inference is serialized behind a mutex.
type Engine struct {
	detector gocv.FaceDetectorYN
	embedder gocv.Net
	mu       sync.Mutex
	log      *logger.Logger
	filter   FilterOptions
}

func NewEngine(cfg *config.Config, log *logger.Logger) (*Engine, error) {
	if _, err := os.Stat(cfg.DetectorModelPath); err != nil {
		return nil, fmt.Errorf("detector model not found at %s: %w", cfg.DetectorModelPath, err)
	}
	if _, err := os.Stat(cfg.EmbedderModelPath); err != nil {
		return nil, fmt.Errorf("embedder model not found at %s: %w", cfg.EmbedderModelPath, err)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.DetectorModelPath, "",
		image.Pt(320, 320),
		cfg.DetectionThreshold,
		0.3,  // nms threshold
		5000, // top k
		0, 0,
	)

	embedder := gocv.ReadNet(cfg.EmbedderModelPath, "")
	if embedder.Empty() {
		detector.Close()
		return nil, fmt.Errorf("failed to load embedder model from %s", cfg.EmbedderModelPath)
	}

	log.Info("Inference engine ready (detector: %s, embedder: %s)",
		cfg.DetectorModelPath, cfg.EmbedderModelPath)

	return &Engine{
		detector: detector,
		embedder: embedder,
		log:      log,
		filter: FilterOptions{
			MinScore:       cfg.DetectionThreshold,
			MinSize:        cfg.MinFaceSize,
			MinAspectRatio: cfg.MinAspectRatio,
			MaxAspectRatio: cfg.MaxAspectRatio,
		},
	}, nil
}

func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detector.Close()
	e.embedder.Close()
}

// DetectAndEmbed decodes an encoded frame, detects faces in it and returns
// every surviving face with a unit-length embedding attached, along with the
// decoded frame dimensions.
func (e *Engine) DetectAndEmbed(data []byte) ([]models.DetectedFace, int, int, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("frame decode failed: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, 0, 0, fmt.Errorf("frame decoded to an empty image")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	width, height := img.Cols(), img.Rows()
	faces, landmarks := e.detect(img)

	var aligned []gocv.Mat
	var alignedFaces []models.DetectedFace
	for i, f := range faces {
		if !e.filter.Keep(f, width, height) {
			continue
		}
		crop, err := e.align(img, landmarks[i])
		if err != nil {
			continue
		}
		aligned = append(aligned, crop)
		alignedFaces = append(alignedFaces, f)
	}
	if len(aligned) == 0 {
		return nil, width, height, nil
	}
	defer func() {
		for i := range aligned {
			aligned[i].Close()
		}
	}()

	vectors, err := e.embedBatch(aligned)
	if err != nil {
		return nil, width, height, err
	}
	for i := range alignedFaces {
		alignedFaces[i].Embedding = vectors[i]
	}
	return alignedFaces, width, height, nil
}

// detect runs the face detector on a decoded frame. Each returned face keeps
// its index into the landmarks slice implicitly by position.
func (e *Engine) detect(img gocv.Mat) ([]models.DetectedFace, [][3]gocv.Point2f) {
	e.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	out := gocv.NewMat()
	defer out.Close()
	e.detector.Detect(img, &out)

	faces := make([]models.DetectedFace, 0, out.Rows())
	landmarks := make([][3]gocv.Point2f, 0, out.Rows())
	for r := 0; r < out.Rows(); r++ {
		faces = append(faces, models.DetectedFace{
			X:      int(out.GetFloatAt(r, 0)),
			Y:      int(out.GetFloatAt(r, 1)),
			Width:  int(out.GetFloatAt(r, 2)),
			Height: int(out.GetFloatAt(r, 3)),
			Score:  out.GetFloatAt(r, 14),
		})
		landmarks = append(landmarks, [3]gocv.Point2f{
			{X: out.GetFloatAt(r, 4), Y: out.GetFloatAt(r, 5)},
			{X: out.GetFloatAt(r, 6), Y: out.GetFloatAt(r, 7)},
			{X: out.GetFloatAt(r, 8), Y: out.GetFloatAt(r, 9)},
		})
	}
	return faces, landmarks
}

// align warps a face onto the 112x112 embedder template using the eye and
// nose landmarks.
func (e *Engine) align(img gocv.Mat, pts [3]gocv.Point2f) (gocv.Mat, error) {
	src := gocv.NewPoint2fVectorFromPoints(pts[:])
	defer src.Close()
	dst := gocv.NewPoint2fVectorFromPoints(arcFaceTemplate)
	defer dst.Close()

	m := gocv.GetAffineTransform2f(src, dst)
	defer m.Close()
	if m.Empty() {
		return gocv.Mat{}, fmt.Errorf("degenerate landmark configuration")
	}

	warped := gocv.NewMat()
	gocv.WarpAffine(img, &warped, m, image.Pt(112, 112))
	return warped, nil
}

// embedBatch runs one forward pass over all aligned crops. If the batched
// output shape disagrees with the input count the crops are re-encoded one
// at a time.
func (e *Engine) embedBatch(crops []gocv.Mat) ([][]float32, error) {
	blob := gocv.NewMat()
	defer blob.Close()
	gocv.BlobFromImages(crops, &blob,
		1.0/127.5,
		image.Pt(112, 112),
		gocv.NewScalar(127.5, 127.5, 127.5, 0),
		true, false, gocv.MatTypeCV32F,
	)

	e.embedder.SetInput(blob, "")
	out := e.embedder.Forward("")
	defer out.Close()

	if out.Rows() != len(crops) {
		e.log.Warning("Batched embedding returned %d rows for %d faces, falling back to per-face passes",
			out.Rows(), len(crops))
		return e.embedOneByOne(crops)
	}

	vectors := make([][]float32, len(crops))
	for r := range crops {
		v := make([]float32, embeddingDim)
		for c := 0; c < embeddingDim; c++ {
			v[c] = out.GetFloatAt(r, c)
		}
		embeddings.Normalize(v)
		vectors[r] = v
	}
	return vectors, nil
}

func (e *Engine) embedOneByOne(crops []gocv.Mat) ([][]float32, error) {
	vectors := make([][]float32, len(crops))
	for i := range crops {
		v, err := e.embedSingle(crops[i])
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (e *Engine) embedSingle(crop gocv.Mat) ([]float32, error) {
	blob := gocv.BlobFromImage(crop,
		1.0/127.5,
		image.Pt(112, 112),
		gocv.NewScalar(127.5, 127.5, 127.5, 0),
		true, false,
	)
	defer blob.Close()

	e.embedder.SetInput(blob, "")
	out := e.embedder.Forward("")
	defer out.Close()

	if out.Total() < embeddingDim {
		return nil, fmt.Errorf("embedder produced %d values, expected %d", out.Total(), embeddingDim)
	}
	v := make([]float32, embeddingDim)
	for c := 0; c < embeddingDim; c++ {
		v[c] = out.GetFloatAt(0, c)
	}
	embeddings.Normalize(v)
	return v, nil
}

// EncodeImageFile detects the most confident face in an image file, aligns
// it and returns its embedding. Used when building the known-faces gallery
// from the dataset directory.
func (e *Engine) EncodeImageFile(path string) ([]float32, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return nil, fmt.Errorf("could not read image %s", path)
	}
	defer img.Close()

	e.mu.Lock()
	defer e.mu.Unlock()

	faces, landmarks := e.detect(img)
	if len(faces) == 0 {
		return nil, fmt.Errorf("no face found in %s", path)
	}
	best := 0
	for i := range faces {
		if faces[i].Score > faces[best].Score {
			best = i
		}
	}

	crop, err := e.align(img, landmarks[best])
	if err != nil {
		return nil, err
	}
	defer crop.Close()
	return e.embedSingle(crop)
}

var _ embeddings.Encoder = (*Engine)(nil)
