package export

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"gitee.com/flycash/notification-governance/internal/pkg/hash"
)

var (
	ErrSigningDisabled  = errors.New("导出签名未启用")
	ErrInvalidKey       = errors.New("密钥格式错误")
	ErrInvalidSignature = errors.New("签名校验失败")
)

// PublicKeyInfo 公开给第三方离线验签
type PublicKeyInfo struct {
	Algorithm   string `json:"algorithm"`
	PEM         string `json:"pem"`
	Fingerprint string `json:"fingerprint"`
}

// Signer RSA PKCS#1 v1.5 + SHA-256 签名，签名对象是 manifest.json 的字节
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner 支持 PKCS#1 与 PKCS#8 两种私钥格式
func NewSigner(privateKeyPEM []byte) (*Signer, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: 没有找到 PEM 块", ErrInvalidKey)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &Signer{key: key}, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: 只支持 RSA 私钥", ErrInvalidKey)
	}
	return &Signer{key: key}, nil
}

// Sign 返回 base64 编码的签名。PKCS#1 v1.5 签名是确定性的
func (s *Signer) Sign(manifest []byte) (string, error) {
	digest := sha256.Sum256(manifest)
	sig, err := rsa.SignPKCS1v15(nil, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func (s *Signer) PublicKey() (PublicKeyInfo, error) {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		return PublicKeyInfo{}, err
	}
	return PublicKeyInfo{
		Algorithm:   "RSA-SHA256",
		PEM:         string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
		Fingerprint: hash.SHA256Hex(der),
	}, nil
}

// VerifySignature 用 PEM 公钥校验 manifest 签名
func VerifySignature(publicKeyPEM, manifest []byte, signature string) error {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return fmt.Errorf("%w: 没有找到 PEM 块", ErrInvalidKey)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: 只支持 RSA 公钥", ErrInvalidKey)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	digest := sha256.Sum256(manifest)
	if err = rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return nil
}
