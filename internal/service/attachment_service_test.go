package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"casedesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadText(t *testing.T, env *testEnv, actor models.Actor, reportID, name, body string) *models.Attachment {
	t.Helper()
	a, err := env.attachments.UploadAttachment(context.Background(), actor, UploadAttachmentInput{
		ReportID: reportID,
		FileName: name,
		Size:     int64(len(body)),
		Content:  strings.NewReader(body),
	})
	require.NoError(t, err)
	return a
}

func attachmentCount(t *testing.T, env *testEnv) int64 {
	t.Helper()
	var n int64
	require.NoError(t, env.db.Model(&models.Attachment{}).Count(&n).Error)
	return n
}

func TestAttachmentService_RoundTripAllowedExtensions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.draft(t)

	for ext := range models.AllowedAttachmentExtensions {
		t.Run(ext, func(t *testing.T) {
			content := bytes.Repeat([]byte(ext), 512)
			name := "evidence." + ext
			contentType := "application/x-test-" + ext

			a, err := env.attachments.UploadAttachment(ctx, owner, UploadAttachmentInput{
				ReportID:    r.ID,
				FileName:    name,
				ContentType: contentType,
				Size:        int64(len(content)),
				Content:     bytes.NewReader(content),
			})
			require.NoError(t, err)
			assert.Equal(t, int64(len(content)), a.FileSize)
			assert.Len(t, a.Checksum, 64)
			assert.NotContains(t, a.StorageKey, "evidence")

			got, rc, err := env.attachments.DownloadAttachment(ctx, reviewer, a.ID)
			require.NoError(t, err)
			defer rc.Close()

			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, content, data)
			assert.Equal(t, name, got.FileName)
			assert.Equal(t, contentType, got.ContentType)
		})
	}
}

func TestAttachmentService_UploadRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		in   func(reportID string) UploadAttachmentInput
	}{
		{"declared oversize", func(id string) UploadAttachmentInput {
			return UploadAttachmentInput{
				ReportID: id,
				FileName: "big.pdf",
				Size:     11 * 1024 * 1024,
				Content:  bytes.NewReader(make([]byte, 11*1024*1024)),
			}
		}},
		{"streamed oversize with unknown size", func(id string) UploadAttachmentInput {
			return UploadAttachmentInput{
				ReportID: id,
				FileName: "big.pdf",
				Content:  bytes.NewReader(make([]byte, 11*1024*1024)),
			}
		}},
		{"understated size", func(id string) UploadAttachmentInput {
			return UploadAttachmentInput{
				ReportID: id,
				FileName: "big.pdf",
				Size:     10,
				Content:  bytes.NewReader(make([]byte, 11*1024*1024)),
			}
		}},
		{"executable", func(id string) UploadAttachmentInput {
			return UploadAttachmentInput{ReportID: id, FileName: "run.exe", Size: 3, Content: strings.NewReader("MZ!")}
		}},
		{"no extension", func(id string) UploadAttachmentInput {
			return UploadAttachmentInput{ReportID: id, FileName: "README", Size: 2, Content: strings.NewReader("hi")}
		}},
		{"empty name", func(id string) UploadAttachmentInput {
			return UploadAttachmentInput{ReportID: id, FileName: "  ", Size: 2, Content: strings.NewReader("hi")}
		}},
		{"size mismatch", func(id string) UploadAttachmentInput {
			return UploadAttachmentInput{ReportID: id, FileName: "a.txt", Size: 10, Content: strings.NewReader("hi")}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			r := env.draft(t)

			_, err := env.attachments.UploadAttachment(ctx, owner, tt.in(r.ID))
			assertCode(t, err, models.CodeValidation)
			assert.Zero(t, attachmentCount(t, env))
			assert.Zero(t, env.files.Len())
		})
	}
}

func TestAttachmentService_UploadExactLimit(t *testing.T) {
	env := newTestEnv(t)
	r := env.draft(t)

	a, err := env.attachments.UploadAttachment(context.Background(), owner, UploadAttachmentInput{
		ReportID: r.ID,
		FileName: "limit.pdf",
		Content:  bytes.NewReader(make([]byte, models.MaxAttachmentSize)),
	})
	require.NoError(t, err)
	assert.Equal(t, models.MaxAttachmentSize, a.FileSize)
	assert.Equal(t, "application/pdf", a.ContentType)
}

func TestAttachmentService_UploadAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.submitted(t)

	_, err := env.attachments.UploadAttachment(ctx, owner, UploadAttachmentInput{ReportID: "missing", FileName: "a.txt", Content: strings.NewReader("x")})
	assertCode(t, err, models.CodeNotFound)

	_, err = env.attachments.UploadAttachment(ctx, stranger, UploadAttachmentInput{ReportID: r.ID, FileName: "a.txt", Content: strings.NewReader("x")})
	assertCode(t, err, models.CodeNotFound)

	// uploads are not gated by report status
	uploadText(t, env, owner, r.ID, "late.txt", "follow-up")
	uploadText(t, env, reviewer, r.ID, "memo.txt", "reviewer memo")
	assert.Equal(t, int64(2), attachmentCount(t, env))
}

func TestAttachmentService_UploadStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	r := env.draft(t)
	env.files.PutErr = errors.New("disk full")

	_, err := env.attachments.UploadAttachment(context.Background(), owner, UploadAttachmentInput{
		ReportID: r.ID,
		FileName: "a.txt",
		Content:  strings.NewReader("x"),
	})
	assertCode(t, err, models.CodeStorageFailure)
	assert.Zero(t, attachmentCount(t, env))
}

func TestAttachmentService_UploadRacingReportDelete(t *testing.T) {
	env := newTestEnv(t)
	r := env.draft(t)
	env.files.AfterPut = func(string) {
		require.NoError(t, env.db.Delete(&models.Report{}, "id = ?", r.ID).Error)
	}

	_, err := env.attachments.UploadAttachment(context.Background(), owner, UploadAttachmentInput{
		ReportID: r.ID,
		FileName: "a.txt",
		Content:  strings.NewReader("x"),
	})
	assertCode(t, err, models.CodeNotFound)
	assert.Zero(t, attachmentCount(t, env))
	assert.Zero(t, env.files.Len())
}

type cancelOnRead struct {
	cancel context.CancelFunc
	r      io.Reader
}

func (c *cancelOnRead) Read(p []byte) (int, error) {
	c.cancel()
	return c.r.Read(p)
}

func TestAttachmentService_UploadCancelled(t *testing.T) {
	env := newTestEnv(t)
	r := env.draft(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := env.attachments.UploadAttachment(ctx, owner, UploadAttachmentInput{
		ReportID: r.ID,
		FileName: "a.txt",
		Content:  &cancelOnRead{cancel: cancel, r: strings.NewReader(strings.Repeat("x", 64*1024))},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, attachmentCount(t, env))
	assert.Zero(t, env.files.Len())
}

func TestAttachmentService_DownloadHidesExistence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.draft(t)
	a := uploadText(t, env, owner, r.ID, "a.txt", "secret")

	_, _, err := env.attachments.DownloadAttachment(ctx, owner, "missing")
	assertCode(t, err, models.CodeNotFound)

	_, _, err = env.attachments.DownloadAttachment(ctx, stranger, a.ID)
	assertCode(t, err, models.CodeNotFound)

	env.files.Drop(a.StorageKey)
	_, _, err = env.attachments.DownloadAttachment(ctx, owner, a.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestAttachmentService_DownloadStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	r := env.draft(t)
	a := uploadText(t, env, owner, r.ID, "a.txt", "x")
	env.files.GetErr = errors.New("connection reset")

	_, _, err := env.attachments.DownloadAttachment(context.Background(), owner, a.ID)
	assertCode(t, err, models.CodeStorageFailure)
}

func TestAttachmentService_DeleteAttachment(t *testing.T) {
	ctx := context.Background()

	t.Run("removes bytes and row", func(t *testing.T) {
		env := newTestEnv(t)
		r := env.draft(t)
		a := uploadText(t, env, owner, r.ID, "a.txt", "x")

		require.NoError(t, env.attachments.DeleteAttachment(ctx, owner, a.ID))
		assert.False(t, env.files.Has(a.StorageKey))
		assert.Zero(t, attachmentCount(t, env))
	})

	t.Run("already absent bytes", func(t *testing.T) {
		env := newTestEnv(t)
		r := env.draft(t)
		a := uploadText(t, env, owner, r.ID, "a.txt", "x")
		env.files.Drop(a.StorageKey)

		require.NoError(t, env.attachments.DeleteAttachment(ctx, reviewer, a.ID))
		assert.Zero(t, attachmentCount(t, env))
	})

	t.Run("storage failure keeps row", func(t *testing.T) {
		env := newTestEnv(t)
		r := env.draft(t)
		a := uploadText(t, env, owner, r.ID, "a.txt", "x")
		env.files.DeleteErr = errors.New("permission denied")

		assertCode(t, env.attachments.DeleteAttachment(ctx, owner, a.ID), models.CodeStorageFailure)
		assert.Equal(t, int64(1), attachmentCount(t, env))
		assert.True(t, env.files.Has(a.StorageKey))
	})

	t.Run("hidden from strangers", func(t *testing.T) {
		env := newTestEnv(t)
		r := env.draft(t)
		a := uploadText(t, env, owner, r.ID, "a.txt", "x")

		assertCode(t, env.attachments.DeleteAttachment(ctx, stranger, a.ID), models.CodeNotFound)
		assert.True(t, env.files.Has(a.StorageKey))
	})
}

func TestAttachmentService_ListAttachments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.draft(t)
	uploadText(t, env, owner, r.ID, "a.txt", "a")
	uploadText(t, env, owner, r.ID, "b.txt", "b")

	list, err := env.attachments.ListAttachments(ctx, reviewer, r.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = env.attachments.ListAttachments(ctx, stranger, r.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestLimitedReader(t *testing.T) {
	lr := &limitedReader{r: strings.NewReader("abcdef"), remaining: 4}
	data, err := io.ReadAll(lr)
	require.ErrorIs(t, err, errTooLarge)
	assert.LessOrEqual(t, len(data), 5)

	lr = &limitedReader{r: strings.NewReader("abcd"), remaining: 4}
	data, err = io.ReadAll(lr)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))
}
