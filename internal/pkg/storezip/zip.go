// Package storezip 只支持 STORE（不压缩）方式的 ZIP 写入。
// 相同的文件列表和时间戳总是得到逐字节相同的输出。
package storezip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"time"
)

const (
	localFileHeaderSignature  uint32 = 0x04034b50
	centralDirectorySignature uint32 = 0x02014b50
	endOfCentralDirSignature  uint32 = 0x06054b50

	versionNeeded uint16 = 20
	methodStore   uint16 = 0
	// 文件名使用 UTF-8
	flagUTF8 uint16 = 0x0800
)

var (
	ErrEmptyName     = errors.New("文件名不能为空")
	ErrDuplicateName = errors.New("文件名重复")
	ErrTooLarge      = errors.New("超出 ZIP32 的大小限制")
)

var crcTable = crc32.MakeTable(crc32.IEEE)

// File 待写入的文件
type File struct {
	Name string
	Data []byte
}

type entry struct {
	name   []byte
	crc    uint32
	size   uint32
	offset uint32
}

// Build 按给定顺序写入文件，所有条目共用同一个修改时间
func Build(files []File, modTime time.Time) ([]byte, error) {
	if len(files) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: 文件数 %d", ErrTooLarge, len(files))
	}
	dosTime, dosDate := DOSDateTime(modTime)

	buf := &bytes.Buffer{}
	entries := make([]entry, 0, len(files))
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if f.Name == "" {
			return nil, ErrEmptyName
		}
		if _, ok := seen[f.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, f.Name)
		}
		seen[f.Name] = struct{}{}
		if uint64(len(f.Data)) > math.MaxUint32 || uint64(buf.Len()) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %s", ErrTooLarge, f.Name)
		}

		e := entry{
			name:   []byte(f.Name),
			crc:    crc32.Checksum(f.Data, crcTable),
			size:   uint32(len(f.Data)),
			offset: uint32(buf.Len()),
		}
		writeLocalHeader(buf, e, dosTime, dosDate)
		buf.Write(e.name)
		buf.Write(f.Data)
		entries = append(entries, e)
	}

	cdOffset := buf.Len()
	for _, e := range entries {
		writeCentralHeader(buf, e, dosTime, dosDate)
		buf.Write(e.name)
	}
	cdSize := buf.Len() - cdOffset
	if uint64(buf.Len()) > math.MaxUint32 {
		return nil, ErrTooLarge
	}

	write(buf, endOfCentralDirSignature)
	write(buf, uint16(0)) // 当前磁盘号
	write(buf, uint16(0)) // 中央目录起始磁盘号
	write(buf, uint16(len(entries)))
	write(buf, uint16(len(entries)))
	write(buf, uint32(cdSize))
	write(buf, uint32(cdOffset))
	write(buf, uint16(0)) // 注释长度
	return buf.Bytes(), nil
}

func writeLocalHeader(buf *bytes.Buffer, e entry, dosTime, dosDate uint16) {
	write(buf, localFileHeaderSignature)
	write(buf, versionNeeded)
	write(buf, flagUTF8)
	write(buf, methodStore)
	write(buf, dosTime)
	write(buf, dosDate)
	write(buf, e.crc)
	write(buf, e.size) // 压缩后大小，STORE 与原始大小相同
	write(buf, e.size)
	write(buf, uint16(len(e.name)))
	write(buf, uint16(0)) // extra
}

func writeCentralHeader(buf *bytes.Buffer, e entry, dosTime, dosDate uint16) {
	write(buf, centralDirectorySignature)
	write(buf, versionNeeded) // version made by
	write(buf, versionNeeded)
	write(buf, flagUTF8)
	write(buf, methodStore)
	write(buf, dosTime)
	write(buf, dosDate)
	write(buf, e.crc)
	write(buf, e.size)
	write(buf, e.size)
	write(buf, uint16(len(e.name)))
	write(buf, uint16(0)) // extra
	write(buf, uint16(0)) // comment
	write(buf, uint16(0)) // disk number start
	write(buf, uint16(0)) // internal attributes
	write(buf, uint32(0)) // external attributes
	write(buf, e.offset)
}

func write(buf *bytes.Buffer, v any) {
	// 写入 bytes.Buffer 不会失败
	_ = binary.Write(buf, binary.LittleEndian, v)
}

// DOSDateTime MS-DOS 格式的时间和日期，早于 1980 年的时间按 1980-01-01 处理。
// 使用 UTC，避免不同时区的机器得到不同的字节
func DOSDateTime(t time.Time) (dosTime, dosDate uint16) {
	t = t.UTC()
	if t.Year() < 1980 {
		return 0, 1<<5 | 1
	}
	dosTime = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	dosDate = uint16((t.Year()-1980)<<9 | int(t.Month())<<5 | t.Day())
	return dosTime, dosDate
}
