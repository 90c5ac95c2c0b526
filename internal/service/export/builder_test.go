package export

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gitee.com/flycash/notification-governance/internal/domain"
	"gitee.com/flycash/notification-governance/internal/pkg/hash"
	"gitee.com/flycash/notification-governance/internal/repository"
	"gitee.com/flycash/notification-governance/internal/test/memrepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generatedAt = time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

func seededRepos(t *testing.T) (*memrepo.BindingRepository, *memrepo.DispatchRepository) {
	t.Helper()
	ctx := t.Context()
	bindings := memrepo.NewBindingRepository()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	// b-1 与 b-2 同一时间，按ID升序
	ctimes := map[string]time.Time{"b-1": base, "b-2": base, "b-3": base.Add(time.Minute)}
	for _, id := range []string{"b-2", "b-1", "b-3"} {
		require.NoError(t, bindings.Create(ctx, domain.ChannelBinding{
			BindingID:     id,
			TenantID:      "t1",
			EntityType:    "company",
			EntityID:      "C-" + id,
			ChannelAppID:  "app-0001",
			ChannelUserID: "im-user-" + id,
			Status:        domain.BindingStatusVerified,
			Audit: []domain.BindingAuditEntry{
				{ActorID: "admin-1", Role: domain.RoleAdmin, Action: domain.BindingActionVerified, Reason: "call ops at +1 555", At: base},
			},
			Ctime: ctimes[id],
			Utime: base,
		}))
	}
	require.NoError(t, bindings.Create(ctx, domain.ChannelBinding{BindingID: "other", TenantID: "t2", EntityID: "X", ChannelAppID: "app", Ctime: base}))

	dispatches := memrepo.NewDispatchRepository()
	require.NoError(t, dispatches.Create(ctx, domain.DispatchRecord{
		DispatchID:          "d-1",
		IdempotencyKey:      "k-1",
		TenantID:            "t1",
		Channel:             domain.ChannelEmail,
		EventCode:           "ORDER_CREATED",
		Correlation:         map[string]string{"orderId": "ORD-1"},
		RecipientRole:       domain.RoleBuyer,
		RecipientUserID:     "u-1",
		RecipientEmail:      "buyer@example.com",
		TemplateKey:         "EMAIL:ORDER_CREATED:en",
		RenderedPayloadHash: "payload-hash",
		RendererVersion:     "governed-renderer/1",
		CreatedAt:           base,
	}))
	for _, e := range []domain.DispatchStatusEvent{
		{StatusEventID: "e-1", DispatchID: "d-1", EventType: domain.StatusEventDispatchCreated, ProviderStatus: domain.ProviderStatusQueued, Attempt: 1, CreatedAt: base},
		{
			StatusEventID:     "e-2",
			DispatchID:        "d-1",
			EventType:         domain.StatusEventProviderSent,
			ProviderStatus:    domain.ProviderStatusSent,
			ProviderRequestID: "req-123456",
			RedactedResponse:  map[string]any{"to": "buyer@example.com"},
			Attempt:           1,
			CreatedAt:         base,
		},
	} {
		_, err := dispatches.AppendStatusEvent(ctx, e)
		require.NoError(t, err)
	}
	return bindings, dispatches
}

func newTestSigner(t *testing.T) (*Signer, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer, err := NewSigner(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	require.NoError(t, err)
	info, err := signer.PublicKey()
	require.NoError(t, err)
	return signer, []byte(info.PEM)
}

func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	res := make(map[string][]byte)
	for _, f := range r.File {
		assert.Equal(t, zip.Store, f.Method)
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		res[f.Name] = b
	}
	return res
}

func TestBuild(t *testing.T) {
	t.Parallel()
	bindings, dispatches := seededRepos(t)
	b := NewBuilder("t1", bindings, dispatches, nil)

	pack, err := b.Build(t.Context(), Request{Scope: domain.ExportScopeAll, GeneratedAt: generatedAt})
	require.NoError(t, err)
	files := unzip(t, pack.Zip)
	require.Len(t, files, 4)

	manifestBytes := files[FileManifest]
	assert.Equal(t, pack.ManifestSHA256, hash.SHA256Hex(manifestBytes))
	assert.Equal(t, pack.ManifestSHA256+"  manifest.json\n", string(files[FileManifestSHA256]))

	var m Manifest
	require.NoError(t, json.Unmarshal(manifestBytes, &m))
	assert.Equal(t, PackType, m.PackType)
	assert.Equal(t, "2025-03-02T10:00:00.000Z", m.GeneratedAt)
	assert.Equal(t, pack.CanonicalHash, m.CanonicalHash)
	assert.False(t, m.Signed)
	names := make([]string, 0, len(m.Files))
	for _, f := range m.Files {
		names = append(names, f.Name)
		assert.Equal(t, len(files[f.Name]), f.Bytes)
		assert.Equal(t, hash.SHA256Hex(files[f.Name]), f.SHA256)
	}
	// manifest 不引用自身
	assert.Equal(t, []string{FileSlice, FileReadme}, names)

	sliceBytes := files[FileSlice]
	require.True(t, bytes.HasSuffix(sliceBytes, []byte("\n")))
	assert.Equal(t, pack.CanonicalHash, hash.SHA256Hex(bytes.TrimSuffix(sliceBytes, []byte("\n"))))

	var s Slice
	require.NoError(t, json.Unmarshal(sliceBytes, &s))
	require.Len(t, s.Bindings, 3)
	assert.Equal(t, MaskID("b-3"), s.Bindings[0].BindingID)
	// 同一时间的两条按脱敏后的ID升序
	assert.Less(t, s.Bindings[1].BindingID, s.Bindings[2].BindingID)
	require.Len(t, s.Dispatches, 1)
	d := s.Dispatches[0]
	assert.Equal(t, "b***@example.com", d.RecipientEmail)
	assert.Equal(t, MaskID("ORD-1"), d.Correlation["orderId"])
	assert.Equal(t, "SENT", d.ProviderStatus)
	require.Len(t, d.StatusEvents, 2)
	assert.Equal(t, "****3456", d.StatusEvents[1].ProviderRequestID)

	// 原始标识符与自由文本不出现在任何文件中
	for name, data := range files {
		for _, raw := range []string{"ORD-1", "buyer@example.com", "im-user-b-1", "C-b-1", "u-1", "req-123456", "+1 555"} {
			assert.NotContains(t, string(data), raw, name)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	t.Parallel()
	bindings, dispatches := seededRepos(t)
	signer, _ := newTestSigner(t)
	b := NewBuilder("t1", bindings, dispatches, signer)
	req := Request{Scope: domain.ExportScopeAll, GeneratedAt: generatedAt}

	first, err := b.Build(t.Context(), req)
	require.NoError(t, err)
	second, err := b.Build(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Zip, second.Zip)
	assert.Equal(t, first.Signature, second.Signature)

	req.GeneratedAt = generatedAt.Add(time.Second)
	third, err := b.Build(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, first.CanonicalHash, third.CanonicalHash)
	assert.NotEqual(t, first.ManifestSHA256, third.ManifestSHA256)
}

// rotate 第 n 次调用时把结果循环左移 n 位
func rotate[T any](list []T, n int64) []T {
	res := slices.Clone(list)
	if len(res) == 0 {
		return res
	}
	k := int(n % int64(len(res)))
	return append(res[k:], res[:k]...)
}

// unorderedBindings 每次 List 返回的顺序都不同
type unorderedBindings struct {
	repository.ChannelBindingRepository
	calls atomic.Int64
}

func (r *unorderedBindings) List(ctx context.Context, tenantID string, filter domain.ExportFilter, page domain.Page) ([]domain.ChannelBinding, error) {
	list, err := r.ChannelBindingRepository.List(ctx, tenantID, filter, page)
	if err != nil {
		return nil, err
	}
	n := r.calls.Add(1)
	if n%2 == 0 {
		slices.Reverse(list)
	}
	return rotate(list, n), nil
}

type unorderedDispatches struct {
	repository.DispatchRepository
	calls atomic.Int64
}

func (r *unorderedDispatches) List(ctx context.Context, tenantID string, filter domain.ExportFilter, page domain.Page) ([]domain.DispatchRecord, error) {
	list, err := r.DispatchRepository.List(ctx, tenantID, filter, page)
	if err != nil {
		return nil, err
	}
	n := r.calls.Add(1)
	if n%2 == 0 {
		slices.Reverse(list)
	}
	return rotate(list, n), nil
}

func TestBuildIndependentOfReadOrder(t *testing.T) {
	t.Parallel()
	bindings, dispatches := seededRepos(t)
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	// 与 d-1 同一时间
	for _, id := range []string{"d-3", "d-2"} {
		require.NoError(t, dispatches.Create(t.Context(), domain.DispatchRecord{
			DispatchID:      id,
			IdempotencyKey:  "k-" + id,
			TenantID:        "t1",
			Channel:         domain.ChannelEmail,
			EventCode:       "ORDER_CREATED",
			RecipientRole:   domain.RoleBuyer,
			RecipientUserID: "u-1",
			TemplateKey:     "EMAIL:ORDER_CREATED:en",
			CreatedAt:       base,
		}))
	}
	signer, _ := newTestSigner(t)
	b := NewBuilder("t1",
		&unorderedBindings{ChannelBindingRepository: bindings},
		&unorderedDispatches{DispatchRepository: dispatches}, signer)
	req := Request{Scope: domain.ExportScopeAll, GeneratedAt: generatedAt}

	packs := make([]Pack, 0, 3)
	for range 3 {
		pack, err := b.Build(t.Context(), req)
		require.NoError(t, err)
		packs = append(packs, pack)
	}
	first := unzip(t, packs[0].Zip)
	var s Slice
	require.NoError(t, json.Unmarshal(first[FileSlice], &s))
	require.Len(t, s.Bindings, 3)
	require.Len(t, s.Dispatches, 3)
	for _, pack := range packs[1:] {
		files := unzip(t, pack.Zip)
		assert.Equal(t, string(first[FileSlice]), string(files[FileSlice]))
		assert.Equal(t, string(first[FileManifest]), string(files[FileManifest]))
		assert.Equal(t, packs[0].ManifestSHA256, pack.ManifestSHA256)
		assert.Equal(t, packs[0].CanonicalHash, pack.CanonicalHash)
		assert.Equal(t, packs[0].Zip, pack.Zip)
	}
}

func TestBuildScope(t *testing.T) {
	t.Parallel()
	bindings, dispatches := seededRepos(t)
	b := NewBuilder("t1", bindings, dispatches, nil)

	pack, err := b.Build(t.Context(), Request{Scope: domain.ExportScopeDispatches, GeneratedAt: generatedAt})
	require.NoError(t, err)
	var s Slice
	require.NoError(t, json.Unmarshal(unzip(t, pack.Zip)[FileSlice], &s))
	assert.Empty(t, s.Bindings)
	assert.Len(t, s.Dispatches, 1)

	pack, err = b.Build(t.Context(), Request{
		Scope:       domain.ExportScopeBindings,
		Page:        domain.Page{Offset: 1, Limit: 1},
		GeneratedAt: generatedAt,
	})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(unzip(t, pack.Zip)[FileSlice], &s))
	assert.Len(t, s.Bindings, 1)
	assert.Empty(t, s.Dispatches)
}

func TestVerify(t *testing.T) {
	t.Parallel()
	bindings, dispatches := seededRepos(t)
	signer, publicKey := newTestSigner(t)
	pack, err := NewBuilder("t1", bindings, dispatches, signer).
		Build(t.Context(), Request{Scope: domain.ExportScopeAll, GeneratedAt: generatedAt})
	require.NoError(t, err)

	report, err := Verify(pack.Zip, publicKey)
	require.NoError(t, err)
	assert.True(t, report.SignatureChecked)
	assert.True(t, report.Manifest.Signed)
	assert.Equal(t, pack.ManifestSHA256, report.ManifestSHA256)

	// 不提供公钥时只校验哈希
	report, err = Verify(pack.Zip, nil)
	require.NoError(t, err)
	assert.False(t, report.SignatureChecked)

	_, otherKey := newTestSigner(t)
	_, err = Verify(pack.Zip, otherKey)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyTampered(t *testing.T) {
	t.Parallel()
	bindings, dispatches := seededRepos(t)
	pack, err := NewBuilder("t1", bindings, dispatches, nil).
		Build(t.Context(), Request{Scope: domain.ExportScopeAll, GeneratedAt: generatedAt})
	require.NoError(t, err)
	files := unzip(t, pack.Zip)

	testCases := []struct {
		name   string
		mutate func(files map[string][]byte)
	}{
		{
			name: "修改数据",
			mutate: func(files map[string][]byte) {
				files[FileSlice] = []byte(strings.Replace(string(files[FileSlice]), "SENT", "LOST", 1))
			},
		},
		{
			name: "修改 manifest",
			mutate: func(files map[string][]byte) {
				files[FileManifest] = append(files[FileManifest], ' ')
			},
		},
		{
			name:   "删除说明文件",
			mutate: func(files map[string][]byte) { delete(files, FileReadme) },
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			copied := make(map[string][]byte, len(files))
			for k, v := range files {
				copied[k] = bytes.Clone(v)
			}
			tc.mutate(copied)
			_, err := Verify(rezip(t, copied), nil)
			assert.ErrorIs(t, err, ErrPackTampered)
		})
	}
}

func rezip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for _, name := range []string{FileManifest, FileManifestSHA256, FileSlice, FileReadme} {
		data, ok := files[name]
		if !ok {
			continue
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestNewSignerInvalid(t *testing.T) {
	t.Parallel()
	_, err := NewSigner([]byte("not a key"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
