package lttbplot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Protocol constants
const (
	// ProtocolVersion is the current version of the frame protocol
	ProtocolVersion byte = 1

	// Message type constants
	MessageTypeData    byte = 0x01
	MessageTypeChart   byte = 0x02
	MessageTypeDestroy byte = 0x03

	// Header size in bytes
	EnvelopeHeaderSize = 8
)

// EnvelopeHeader represents the message envelope header
type EnvelopeHeader struct {
	Version  byte
	Reserved [2]byte // Reserved for future use
	Type     byte
	Length   uint32 // Payload length in bytes
}

// DataMessage carries the (decimated) points of one series (type 0x01).
// SeriesID is the index of the series in the chart's datasets.
type DataMessage struct {
	ChartID  uint32
	SeriesID uint32
	Length   uint32    // Number of X/Y pairs
	X        []float64 // X values, unix milliseconds
	Y        []float64 // Y values
}

// ChartMetadata announces a newly built chart (type 0x02). The config holds the
// dataset styles only; the points follow in one DATA message per series.
type ChartMetadata struct {
	ChartID uint32      `json:"chartId" cbor:"chartId"`
	Surface Surface     `json:"surface" cbor:"surface"`
	Config  ChartConfig `json:"config" cbor:"config"`

	// Number of points per series, before and after decimation.
	OriginalPoints  []int `json:"originalPoints" cbor:"originalPoints"`
	DecimatedPoints []int `json:"decimatedPoints" cbor:"decimatedPoints"`
}

// DestroyMessage tells subscribers that a chart was released (type 0x03).
type DestroyMessage struct {
	ChartID uint32 `json:"chartId"`
	Reason  string `json:"reason"`
}

// WSMessage represents a complete websocket message with header and payload
type WSMessage struct {
	Header  EnvelopeHeader
	Payload interface{} // One of: DataMessage, ChartMetadata, DestroyMessage
}

// EncodeEnvelopeHeader encodes the envelope header into a byte slice
func EncodeEnvelopeHeader(env EnvelopeHeader) []byte {
	buf := make([]byte, EnvelopeHeaderSize)
	buf[0] = env.Version
	buf[1] = env.Reserved[0]
	buf[2] = env.Reserved[1]
	buf[3] = env.Type
	binary.LittleEndian.PutUint32(buf[4:8], env.Length)
	return buf
}

// DecodeEnvelopeHeader decodes the envelope header from a byte slice
// Returns the envelope and an error if the buffer is too short
func DecodeEnvelopeHeader(buf []byte) (EnvelopeHeader, error) {
	if len(buf) < EnvelopeHeaderSize {
		return EnvelopeHeader{}, fmt.Errorf("buffer too short: expected at least %d bytes, got %d", EnvelopeHeaderSize, len(buf))
	}

	env := EnvelopeHeader{
		Version: buf[0],
		Type:    buf[3],
		Length:  binary.LittleEndian.Uint32(buf[4:8]),
	}
	env.Reserved[0] = buf[1]
	env.Reserved[1] = buf[2]

	return env, nil
}

const dataMessagePrefixSize = 12

// EncodeDataMessage encodes a DATA message payload
// Returns error if X and Y arrays don't match in length
func EncodeDataMessage(msg DataMessage) ([]byte, error) {
	if len(msg.X) != len(msg.Y) {
		return nil, fmt.Errorf("X and Y arrays must have same length: X=%d, Y=%d", len(msg.X), len(msg.Y))
	}
	if uint32(len(msg.X)) != msg.Length {
		return nil, fmt.Errorf("Length field (%d) doesn't match array length (%d)", msg.Length, len(msg.X))
	}

	// ChartID(4) + SeriesID(4) + Length(4) + X array + Y array
	payloadSize := dataMessagePrefixSize + (msg.Length * 8 * 2)
	buf := make([]byte, payloadSize)

	binary.LittleEndian.PutUint32(buf[0:4], msg.ChartID)
	binary.LittleEndian.PutUint32(buf[4:8], msg.SeriesID)
	binary.LittleEndian.PutUint32(buf[8:12], msg.Length)

	offset := dataMessagePrefixSize
	for _, x := range msg.X {
		binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(x))
		offset += 8
	}

	for _, y := range msg.Y {
		binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(y))
		offset += 8
	}

	return buf, nil
}

// DecodeDataMessage decodes a DATA message payload
func DecodeDataMessage(buf []byte) (DataMessage, error) {
	if len(buf) < dataMessagePrefixSize {
		return DataMessage{}, fmt.Errorf("buffer too short for DATA message: expected at least %d bytes, got %d", dataMessagePrefixSize, len(buf))
	}

	msg := DataMessage{
		ChartID:  binary.LittleEndian.Uint32(buf[0:4]),
		SeriesID: binary.LittleEndian.Uint32(buf[4:8]),
		Length:   binary.LittleEndian.Uint32(buf[8:12]),
	}

	expectedSize := uint64(dataMessagePrefixSize) + uint64(msg.Length)*8*2
	if uint64(len(buf)) != expectedSize {
		return DataMessage{}, fmt.Errorf("buffer size mismatch: expected %d bytes for %d pairs, got %d", expectedSize, msg.Length, len(buf))
	}

	msg.X = make([]float64, msg.Length)
	offset := dataMessagePrefixSize
	for i := uint32(0); i < msg.Length; i++ {
		msg.X[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[offset : offset+8]))
		offset += 8
	}

	msg.Y = make([]float64, msg.Length)
	for i := uint32(0); i < msg.Length; i++ {
		msg.Y[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[offset : offset+8]))
		offset += 8
	}

	return msg, nil
}

// NewDataMessage builds the DATA message of one series.
func NewDataMessage(chartID, seriesID uint32, points []Point) DataMessage {
	msg := DataMessage{
		ChartID:  chartID,
		SeriesID: seriesID,
		Length:   uint32(len(points)),
		X:        make([]float64, len(points)),
		Y:        make([]float64, len(points)),
	}

	for i, p := range points {
		msg.X[i] = float64(p.X)
		msg.Y[i] = p.Y
	}

	return msg
}

// Points converts the message back into points.
func (msg DataMessage) Points() []Point {
	points := make([]Point, len(msg.X))
	for i := range msg.X {
		points[i] = Point{X: int64(msg.X[i]), Y: msg.Y[i]}
	}
	return points
}

// JSON payloads are prefixed by their length: JSON Length (4 bytes) + JSON data
func encodeJSONPayload(v interface{}, what string) ([]byte, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", what, err)
	}

	buf := make([]byte, 4+len(jsonData))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(jsonData)))
	copy(buf[4:], jsonData)

	return buf, nil
}

func decodeJSONPayload(buf []byte, v interface{}, what string) error {
	if len(buf) < 4 {
		return fmt.Errorf("buffer too short for %s message: expected at least 4 bytes, got %d", what, len(buf))
	}

	jsonLength := binary.LittleEndian.Uint32(buf[0:4])

	expectedSize := 4 + uint64(jsonLength)
	if uint64(len(buf)) != expectedSize {
		return fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", expectedSize, len(buf))
	}

	if err := json.Unmarshal(buf[4:], v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", what, err)
	}

	return nil
}

// EncodeChartMessage encodes a CHART message payload
func EncodeChartMessage(metadata ChartMetadata) ([]byte, error) {
	return encodeJSONPayload(metadata, "chart metadata")
}

// DecodeChartMessage decodes a CHART message payload
func DecodeChartMessage(buf []byte) (ChartMetadata, error) {
	var metadata ChartMetadata
	if err := decodeJSONPayload(buf, &metadata, "CHART"); err != nil {
		return ChartMetadata{}, err
	}
	return metadata, nil
}

// EncodeDestroyMessage encodes a DESTROY message payload
func EncodeDestroyMessage(msg DestroyMessage) ([]byte, error) {
	return encodeJSONPayload(msg, "destroy message")
}

// DecodeDestroyMessage decodes a DESTROY message payload
func DecodeDestroyMessage(buf []byte) (DestroyMessage, error) {
	var msg DestroyMessage
	if err := decodeJSONPayload(buf, &msg, "DESTROY"); err != nil {
		return DestroyMessage{}, err
	}
	return msg, nil
}

// EncodeWSMessage encodes a WSMessage into a complete message byte slice
// Returns error if payload encoding fails or if payload type is invalid
func EncodeWSMessage(msg WSMessage) ([]byte, error) {
	var payload []byte
	var err error

	switch msg.Header.Type {
	case MessageTypeData:
		dataMsg, ok := msg.Payload.(DataMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected DataMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeDataMessage(dataMsg)
	case MessageTypeChart:
		metadata, ok := msg.Payload.(ChartMetadata)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected ChartMetadata for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeChartMessage(metadata)
	case MessageTypeDestroy:
		destroy, ok := msg.Payload.(DestroyMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected DestroyMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeDestroyMessage(destroy)
	default:
		return nil, fmt.Errorf("unknown message type: 0x%02x", msg.Header.Type)
	}

	if err != nil {
		return nil, err
	}

	// Update header length to match actual payload size
	msg.Header.Length = uint32(len(payload))

	header := EncodeEnvelopeHeader(msg.Header)

	fullMsg := make([]byte, len(header)+len(payload))
	copy(fullMsg, header)
	copy(fullMsg[len(header):], payload)

	return fullMsg, nil
}

// DecodeWSMessage decodes a complete message (envelope + payload) into a WSMessage
// Returns error if buffer is too short or payload decoding fails
func DecodeWSMessage(buf []byte) (WSMessage, error) {
	env, err := DecodeEnvelopeHeader(buf)
	if err != nil {
		return WSMessage{}, err
	}

	expectedSize := uint64(EnvelopeHeaderSize) + uint64(env.Length)
	if uint64(len(buf)) < expectedSize {
		return WSMessage{}, fmt.Errorf("buffer too short: expected %d bytes (header + payload), got %d", expectedSize, len(buf))
	}

	payloadBytes := buf[EnvelopeHeaderSize:expectedSize]

	var payload interface{}
	switch env.Type {
	case MessageTypeData:
		payload, err = DecodeDataMessage(payloadBytes)
	case MessageTypeChart:
		payload, err = DecodeChartMessage(payloadBytes)
	case MessageTypeDestroy:
		payload, err = DecodeDestroyMessage(payloadBytes)
	default:
		return WSMessage{}, fmt.Errorf("unknown message type: 0x%02x", env.Type)
	}

	if err != nil {
		return WSMessage{}, err
	}

	return WSMessage{
		Header:  env,
		Payload: payload,
	}, nil
}

// newMessage wraps a payload with a header of the current protocol version.
func newMessage(messageType byte, payload interface{}) WSMessage {
	return WSMessage{
		Header: EnvelopeHeader{
			Version: ProtocolVersion,
			Type:    messageType,
		},
		Payload: payload,
	}
}
