package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/pkg/hash"
	"gitee.com/flycash/notification-governance/internal/pkg/storezip"
	"gitee.com/flycash/notification-governance/internal/repository"
)

const (
	PackType    = "regulator-audit-export"
	PackVersion = 1

	FileSlice          = "slice.json"
	FileManifest       = "manifest.json"
	FileManifestSHA256 = "manifest.sha256.txt"
	FileReadme         = "README.txt"
	FileSignature      = "manifest.sig"
)

// Request 导出请求，GeneratedAt 由服务端给出
type Request struct {
	Scope       domain.ExportScope
	Filter      domain.ExportFilter
	Page        domain.Page
	GeneratedAt time.Time
}

// FileEntry manifest 中的一行
type FileEntry struct {
	Name   string `json:"name"`
	Bytes  int    `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// Manifest 不包含自身以及自身的校验文件
type Manifest struct {
	PackType      string      `json:"packType"`
	Version       int         `json:"version"`
	GeneratedAt   string      `json:"generatedAt"`
	Scope         string      `json:"scope"`
	Files         []FileEntry `json:"files"`
	CanonicalHash string      `json:"canonicalHash"`
	Signed        bool        `json:"signed"`
}

// Pack 导出结果
type Pack struct {
	Zip            []byte
	ManifestSHA256 string
	// CanonicalHash 数据切片的规范化哈希
	CanonicalHash string
	Signature     string
	Files         []FileEntry
}

// Builder 相同的数据与请求总是得到逐字节相同的 ZIP
type Builder struct {
	extractor *extractor
	signer    *Signer
}

// NewBuilder signer 为 nil 时不签名
func NewBuilder(tenantID string, bindings repository.ChannelBindingRepository,
	dispatches repository.DispatchRepository, signer *Signer,
) *Builder {
	return &Builder{
		extractor: &extractor{tenantID: tenantID, bindings: bindings, dispatches: dispatches},
		signer:    signer,
	}
}

func (b *Builder) Build(ctx context.Context, req Request) (Pack, error) {
	s, err := b.extractor.extract(ctx, req)
	if err != nil {
		return Pack{}, fmt.Errorf("提取导出数据失败: %w", err)
	}
	sliceBytes, err := hash.StableBytes(s)
	if err != nil {
		return Pack{}, err
	}
	canonicalHash := hash.SHA256Hex(sliceBytes)
	sliceBytes = append(sliceBytes, '\n')

	generatedAt := req.GeneratedAt.UTC()
	readme := []byte(readmeText(generatedAt, b.signer != nil))
	payload := []storezip.File{
		{Name: FileSlice, Data: sliceBytes},
		{Name: FileReadme, Data: readme},
	}
	entries := make([]FileEntry, 0, len(payload))
	for _, f := range payload {
		entries = append(entries, FileEntry{Name: f.Name, Bytes: len(f.Data), SHA256: hash.SHA256Hex(f.Data)})
	}

	manifestBytes, err := hash.StableBytes(Manifest{
		PackType:      PackType,
		Version:       PackVersion,
		GeneratedAt:   formatTime(generatedAt),
		Scope:         string(req.Scope),
		Files:         entries,
		CanonicalHash: canonicalHash,
		Signed:        b.signer != nil,
	})
	if err != nil {
		return Pack{}, err
	}
	manifestBytes = append(manifestBytes, '\n')
	manifestHash := hash.SHA256Hex(manifestBytes)

	files := []storezip.File{
		{Name: FileManifest, Data: manifestBytes},
		{Name: FileManifestSHA256, Data: []byte(ChecksumLine(manifestHash))},
	}
	files = append(files, payload...)
	var signature string
	if b.signer != nil {
		signature, err = b.signer.Sign(manifestBytes)
		if err != nil {
			return Pack{}, fmt.Errorf("签名失败: %w", err)
		}
		files = append(files, storezip.File{Name: FileSignature, Data: []byte(signature + "\n")})
	}

	zipBytes, err := storezip.Build(files, generatedAt)
	if err != nil {
		return Pack{}, err
	}
	return Pack{
		Zip:            zipBytes,
		ManifestSHA256: manifestHash,
		CanonicalHash:  canonicalHash,
		Signature:      signature,
		Files:          entries,
	}, nil
}

// ChecksumLine sha256sum 兼容的格式
func ChecksumLine(manifestHash string) string {
	return manifestHash + "  " + FileManifest + "\n"
}

func readmeText(generatedAt time.Time, signed bool) string {
	var sb strings.Builder
	sb.WriteString("Regulator audit export\n")
	sb.WriteString("Generated at: " + formatTime(generatedAt) + "\n\n")
	sb.WriteString("All identifiers are masked: ids appear as sha256:<first 16 hex chars>, account handles keep only the last 4 characters.\n\n")
	sb.WriteString("Verification:\n")
	sb.WriteString("1. sha256sum -c manifest.sha256.txt\n")
	sb.WriteString("2. For every entry in manifest.json files[], check that the file has the listed byte length and sha256.\n")
	sb.WriteString("3. canonicalHash is the sha256 of slice.json without its trailing newline.\n")
	if signed {
		sb.WriteString("4. manifest.sig is a base64 RSA PKCS#1 v1.5 SHA-256 signature over manifest.json; verify it with the published public key.\n")
	}
	return sb.String()
}
