//go:build !ocr

package recognition

func newGosseractEngine(Profile) (Engine, error) {
	return nil, ErrOCRNotEnabled
}
