// Package wire 定义会话通道上的帧格式
//
// 帧结构（与传输方案无关）：
//
//	varint 长度 | 1 字节记录类型 | payload
//
// 长度覆盖类型字节与 payload。控制记录（version/ping/pong/addrs）
// 的 payload 为 JSON；data 记录的 payload 对本层不透明，由上层
// 协议自行解释。
package wire

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"

	"github.com/overmesh/go-overmesh/pkg/types"
)

// ============================================================================
//                              记录类型
// ============================================================================

// RecordType 帧记录类型
type RecordType uint8

const (
	// RecordVersion 握手版本/身份记录
	RecordVersion RecordType = 0x01

	// RecordPing 心跳探测
	RecordPing RecordType = 0x02

	// RecordPong 心跳应答
	RecordPong RecordType = 0x03

	// RecordAddrs 地址传播
	RecordAddrs RecordType = 0x04

	// RecordData 上层协议数据（对本层不透明）
	RecordData RecordType = 0x10
)

// String 返回记录类型的字符串表示
func (t RecordType) String() string {
	switch t {
	case RecordVersion:
		return "version"
	case RecordPing:
		return "ping"
	case RecordPong:
		return "pong"
	case RecordAddrs:
		return "addrs"
	case RecordData:
		return "data"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(t))
	}
}

// MaxRecordSize 单帧上限
//
// 控制记录远小于此值；data 记录超限由上层分片。
const MaxRecordSize = 1 << 20 // 1 MiB

// ============================================================================
//                              帧编解码
// ============================================================================

// WriteRecord 写出一帧
func WriteRecord(w io.Writer, t RecordType, payload []byte) error {
	total := uint64(1 + len(payload))
	if total > MaxRecordSize {
		return fmt.Errorf("记录过大: %d 字节", total)
	}

	buf := varint.ToUvarint(total)
	buf = append(buf, byte(t))
	buf = append(buf, payload...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: %w", types.ErrIOClosed, err)
	}
	return nil
}

// ReadRecord 读入一帧
func ReadRecord(r io.Reader) (RecordType, []byte, error) {
	br := byteReaderOf(r)
	length, err := varint.ReadUvarint(br)
	if err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("%w: 读取帧长度: %w", types.ErrIOClosed, err)
	}
	if length == 0 || length > MaxRecordSize {
		return 0, nil, fmt.Errorf("%w: 非法帧长度 %d", types.ErrMalformedMessage, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("%w: 读取帧体: %w", types.ErrIOClosed, err)
	}

	return RecordType(body[0]), body[1:], nil
}

// byteReaderOf 适配 io.ByteReader
func byteReaderOf(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return &oneByteReader{r: r}
}

type oneByteReader struct {
	r   io.Reader
	buf [1]byte
}

func (o *oneByteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(o.r, o.buf[:]); err != nil {
		return 0, err
	}
	return o.buf[0], nil
}

// ============================================================================
//                              控制记录
// ============================================================================

// VersionRecord 握手版本/身份记录
type VersionRecord struct {
	// Version 协议版本
	Version types.Version `json:"version"`

	// NodeID 节点标识（Base58）
	NodeID string `json:"node_id"`

	// Nonce 每次进程启动生成的随机值，用于自连检测
	Nonce string `json:"nonce"`

	// ExternalAddrs 对外通告的可达地址（可选）
	ExternalAddrs []string `json:"external_addrs,omitempty"`
}

// PingRecord 心跳探测
type PingRecord struct {
	// Nonce 探测标识
	Nonce string `json:"nonce"`

	// Timestamp 发送时间（纳秒）
	Timestamp int64 `json:"timestamp"`
}

// PongRecord 心跳应答
type PongRecord struct {
	// Nonce 回显的探测标识
	Nonce string `json:"nonce"`

	// Timestamp 应答时间（纳秒）
	Timestamp int64 `json:"timestamp"`
}

// AddrsRecord 地址传播
type AddrsRecord struct {
	// Addrs 地址 URL 列表
	Addrs []string `json:"addrs"`
}

// WriteJSON 编码控制记录并写出一帧
func WriteJSON(w io.Writer, t RecordType, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("编码 %s 记录失败: %w", t, err)
	}
	return WriteRecord(w, t, payload)
}

// DecodeJSON 解码控制记录 payload
func DecodeJSON(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", types.ErrMalformedMessage, err)
	}
	return nil
}
