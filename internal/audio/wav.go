package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const headerSize = 44

// WAVHeader represents the header structure of a WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// newHeader builds a PCM-16 mono header declaring dataSize payload bytes.
func newHeader(sampleRate int, dataSize uint32) WAVHeader {
	numChannels := uint16(1)
	bitsPerSample := uint16(16)

	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// Writer streams PCM-16 mono audio into a WAV container without knowing
// the total payload length up front. A placeholder header is written at
// open time and patched with the real sizes by Finalize, so the sink must
// be seekable. A Writer is single-use: after Finalize all writes fail.
type Writer struct {
	sink       io.WriteSeeker
	sampleRate int
	written    uint32
	finalized  bool
}

// NewWriter writes a placeholder header to sink and returns a Writer
// positioned at the start of the data chunk.
func NewWriter(sink io.WriteSeeker, sampleRate int) (*Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	// Placeholder declares zero payload bytes until Finalize patches it.
	if err := binary.Write(sink, binary.LittleEndian, newHeader(sampleRate, 0)); err != nil {
		return nil, fmt.Errorf("failed to write placeholder WAV header: %w", err)
	}

	return &Writer{sink: sink, sampleRate: sampleRate}, nil
}

// Write appends raw little-endian PCM-16 bytes to the data chunk.
func (w *Writer) Write(pcm []byte) (int, error) {
	if w.finalized {
		return 0, fmt.Errorf("write after finalize")
	}

	n, err := w.sink.Write(pcm)
	w.written += uint32(n)
	if err != nil {
		return n, fmt.Errorf("failed to write audio data: %w", err)
	}

	return n, nil
}

// WriteSamples appends PCM-16 samples to the data chunk.
func (w *Writer) WriteSamples(samples []int16) error {
	if w.finalized {
		return fmt.Errorf("write after finalize")
	}

	if err := binary.Write(w.sink, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("failed to write audio samples: %w", err)
	}

	w.written += uint32(len(samples) * 2)
	return nil
}

// BytesWritten returns the number of payload bytes written so far.
func (w *Writer) BytesWritten() uint32 {
	return w.written
}

// Finalize seeks back to the start of the container and rewrites the
// header with the true payload length. After Finalize the declared data
// length always equals the number of payload bytes written.
func (w *Writer) Finalize() error {
	if w.finalized {
		return fmt.Errorf("container already finalized")
	}
	w.finalized = true

	if _, err := w.sink.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to WAV header: %w", err)
	}

	if err := binary.Write(w.sink, binary.LittleEndian, newHeader(w.sampleRate, w.written)); err != nil {
		return fmt.Errorf("failed to patch WAV header: %w", err)
	}

	return nil
}

// EncodeWAV encodes PCM-16 samples into a complete WAV container in memory.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, newHeader(sampleRate, dataSize)); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV decodes WAV format data back to PCM-16 samples
func DecodeWAV(data []byte) ([]int16, int, error) {
	if err := ValidateWAV(data); err != nil {
		return nil, 0, err
	}

	buf := bytes.NewReader(data)
	var header WAVHeader

	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if header.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", header.AudioFormat)
	}

	if header.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", header.BitsPerSample)
	}

	if header.NumChannels != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count: %d (only mono is supported)", header.NumChannels)
	}

	numSamples := int(header.Subchunk2Size) / 2
	if numSamples == 0 {
		return []int16{}, int(header.SampleRate), nil
	}

	samples := make([]int16, numSamples)
	if err := binary.Read(buf, binary.LittleEndian, samples); err != nil {
		return nil, 0, fmt.Errorf("failed to read audio samples: %w", err)
	}

	return samples, int(header.SampleRate), nil
}

// ValidateWAV validates a WAV container format without decoding the audio data
func ValidateWAV(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("WAV data too short: need at least %d bytes, got %d", headerSize, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	if string(data[8:12]) != "WAVE" {
		return fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	if string(data[12:16]) != "fmt " {
		return fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	if string(data[36:40]) != "data" {
		return fmt.Errorf("invalid WAV file: missing data chunk")
	}

	return nil
}

// WAVInfo holds basic metadata about a WAV container
type WAVInfo struct {
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
	NumSamples    uint32  `json:"num_samples"`
}

// GetWAVInfo extracts metadata from a WAV container
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	if err := ValidateWAV(data); err != nil {
		return nil, err
	}

	buf := bytes.NewReader(data)
	var header WAVHeader

	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if header.SampleRate == 0 {
		return nil, fmt.Errorf("invalid sample rate: 0")
	}

	numSamples := header.Subchunk2Size / (uint32(header.BitsPerSample) / 8)
	duration := float64(numSamples) / float64(header.SampleRate)

	return &WAVInfo{
		SampleRate:    header.SampleRate,
		Channels:      header.NumChannels,
		BitsPerSample: header.BitsPerSample,
		Duration:      duration,
		DataSize:      header.Subchunk2Size,
		NumSamples:    numSamples,
	}, nil
}
