package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gitee.com/flycash/notification-governance/internal/pkg/hash"
	"github.com/hashicorp/go-multierror"
)

var ErrPackTampered = errors.New("导出包校验失败")

// VerifyReport 离线校验的结果
type VerifyReport struct {
	Manifest       Manifest
	ManifestSHA256 string
	// SignatureChecked 提供了公钥并且签名校验通过
	SignatureChecked bool
}

// Verify 重新计算每个文件的哈希并与 manifest 比对。
// publicKeyPEM 为空时跳过验签
func Verify(zipBytes, publicKeyPEM []byte) (VerifyReport, error) {
	files, err := readZip(zipBytes)
	if err != nil {
		return VerifyReport{}, err
	}
	manifestBytes, ok := files[FileManifest]
	if !ok {
		return VerifyReport{}, fmt.Errorf("%w: 缺少 %s", ErrPackTampered, FileManifest)
	}
	var m Manifest
	if err = json.Unmarshal(manifestBytes, &m); err != nil {
		return VerifyReport{}, fmt.Errorf("%w: manifest 解析失败 %w", ErrPackTampered, err)
	}
	report := VerifyReport{Manifest: m, ManifestSHA256: hash.SHA256Hex(manifestBytes)}

	var merr *multierror.Error
	if got := string(files[FileManifestSHA256]); got != ChecksumLine(report.ManifestSHA256) {
		merr = multierror.Append(merr, fmt.Errorf("%w: %s 与 manifest 不一致", ErrPackTampered, FileManifestSHA256))
	}
	for _, entry := range m.Files {
		data, ok1 := files[entry.Name]
		switch {
		case !ok1:
			merr = multierror.Append(merr, fmt.Errorf("%w: 缺少 %s", ErrPackTampered, entry.Name))
		case len(data) != entry.Bytes || hash.SHA256Hex(data) != entry.SHA256:
			merr = multierror.Append(merr, fmt.Errorf("%w: %s 的长度或哈希不一致", ErrPackTampered, entry.Name))
		}
	}
	if data, ok1 := files[FileSlice]; ok1 {
		if hash.SHA256Hex(bytes.TrimSuffix(data, []byte("\n"))) != m.CanonicalHash {
			merr = multierror.Append(merr, fmt.Errorf("%w: canonicalHash 不一致", ErrPackTampered))
		}
	}

	sig, signed := files[FileSignature]
	if m.Signed && !signed {
		merr = multierror.Append(merr, fmt.Errorf("%w: 缺少 %s", ErrPackTampered, FileSignature))
	}
	if signed && len(publicKeyPEM) > 0 {
		if err = VerifySignature(publicKeyPEM, manifestBytes, strings.TrimSpace(string(sig))); err != nil {
			merr = multierror.Append(merr, err)
		} else {
			report.SignatureChecked = true
		}
	}
	return report, merr.ErrorOrNil()
}

func readZip(zipBytes []byte) (map[string][]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: 不是合法的 ZIP %w", ErrPackTampered, err)
	}
	res := make(map[string][]byte, len(r.File))
	for _, f := range r.File {
		if f.Method != zip.Store {
			return nil, fmt.Errorf("%w: %s 不是 STORE 方式", ErrPackTampered, f.Name)
		}
		rc, err1 := f.Open()
		if err1 != nil {
			return nil, err1
		}
		data, err1 := io.ReadAll(rc)
		_ = rc.Close()
		if err1 != nil {
			return nil, fmt.Errorf("%w: 读取 %s 失败 %w", ErrPackTampered, f.Name, err1)
		}
		res[f.Name] = data
	}
	return res, nil
}
