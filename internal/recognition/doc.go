// Package recognition converts page images into text artifacts.
//
// Engines are chosen by configuration: the tesseract CLI through an Executor,
// or the gosseract binding when built with -tags ocr. Profiles adjust page
// segmentation for the shape of the notes. Output text is NFC-normalized.
// Placeholders left by normalize are copied through unchanged.
package recognition
