package disco

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ARNetworkAL frame types.
const (
	frameTypeAck         = 1
	frameTypeData        = 2
	frameTypeLowLatency  = 3
	frameTypeDataWithAck = 4
)

// Well-known buffer ids.
const (
	bufferPing       = 0
	bufferPong       = 1
	bufferC2DCommand = 10
	bufferC2DWithAck = 11
	bufferD2CReport  = 127
)

const frameHeaderLen = 7

// frame is one ARNetworkAL datagram: a 7 byte header (type, buffer, seq,
// total size LE) followed by the payload.
type frame struct {
	Type    uint8
	Buffer  uint8
	Seq     uint8
	Payload []byte
}

func (f frame) marshal() []byte {
	out := make([]byte, frameHeaderLen+len(f.Payload))
	out[0] = f.Type
	out[1] = f.Buffer
	out[2] = f.Seq
	binary.LittleEndian.PutUint32(out[3:7], uint32(len(out)))
	copy(out[frameHeaderLen:], f.Payload)
	return out
}

// parseFrames splits one datagram into the frames it carries. The drone packs
// multiple frames per datagram under load.
func parseFrames(data []byte) ([]frame, error) {
	var frames []frame
	for len(data) > 0 {
		if len(data) < frameHeaderLen {
			return nil, fmt.Errorf("disco: truncated frame header, %d bytes", len(data))
		}
		size := binary.LittleEndian.Uint32(data[3:7])
		if size < frameHeaderLen || int(size) > len(data) {
			return nil, fmt.Errorf("disco: bad frame size %d", size)
		}
		frames = append(frames, frame{
			Type:    data[0],
			Buffer:  data[1],
			Seq:     data[2],
			Payload: data[frameHeaderLen:size],
		})
		data = data[size:]
	}
	return frames, nil
}

// command is a decoded ARCommand header: project, class, and command id,
// followed by the argument bytes.
type command struct {
	Project uint8
	Class   uint8
	ID      uint16
	Args    []byte
}

func parseCommand(payload []byte) (command, error) {
	if len(payload) < 4 {
		return command{}, fmt.Errorf("disco: short command, %d bytes", len(payload))
	}
	return command{
		Project: payload[0],
		Class:   payload[1],
		ID:      binary.LittleEndian.Uint16(payload[2:4]),
		Args:    payload[4:],
	}, nil
}

// encodeCommand serialises a command. Arguments are written little endian in
// order; strings are NUL-terminated.
func encodeCommand(project, class uint8, id uint16, args ...any) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte(project)
	buf.WriteByte(class)
	var idBytes [2]byte
	binary.LittleEndian.PutUint16(idBytes[:], id)
	buf.Write(idBytes[:])

	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			buf.WriteString(v)
			buf.WriteByte(0)
		default:
			if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
				return nil, fmt.Errorf("disco: encode arg %T: %w", arg, err)
			}
		}
	}
	return buf.Bytes(), nil
}
