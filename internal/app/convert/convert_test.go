package convert_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stefando/pdf2img/internal/app/convert"
	"github.com/stefando/pdf2img/internal/log"
	"github.com/stefando/pdf2img/internal/model"
	"github.com/stefando/pdf2img/internal/remote/remotemock"
	"github.com/stefando/pdf2img/internal/storage"
	"github.com/stefando/pdf2img/internal/storage/storagemock"
)

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) Validate(ctx context.Context, f model.InputFile) error {
	return m.Called(ctx, f.Name).Error(0)
}

func pdfFile(name string) model.InputFile {
	return model.NewInputFileFromBytes(name, "application/pdf", []byte("%PDF-1.7 "+name))
}

func startedSession() model.TaskSession {
	return model.TaskSession{
		Tool:          "pdfjpg",
		AuthToken:     "tok-1",
		ServerBaseURL: "https://api8g.ilovepdf.test/v1",
		TaskID:        "task-1",
		Status:        model.TaskStatusPending,
	}
}

func executedSession(remoteStatus string, status model.TaskStatus) model.TaskSession {
	s := startedSession()
	s.Status = status
	s.RemoteStatus = remoteStatus
	s.OutputFileName = "output.zip"
	return s
}

func stagedObject(name string) *storage.Object {
	return &storage.Object{Name: "in/" + name, URL: "https://s3.test/docs/in/" + name}
}

func registerFile(_ context.Context, _ model.TaskSession, f model.StagedFile) model.StagedFile {
	f.RemoteServerName = "srv-" + f.OriginalName
	return f
}

// expectStaging expects one upload per file.
func expectStaging(m *storagemock.MockObjectStore, names ...string) {
	for _, n := range names {
		m.On("Upload", mock.Anything, mock.Anything, n).Once().Return(stagedObject(n), nil)
	}
}

// expectStarted expects the authentication and the start of the task.
func expectStarted(m *remotemock.MockTaskAPI) {
	m.On("Authenticate", mock.Anything).Once().Return("tok-1", nil)
	m.On("Start", mock.Anything, "tok-1", "pdfjpg").Once().Return(startedSession(), nil)
}

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config convert.ServiceConfig
		expErr bool
	}{
		"valid config should create service": {
			config: convert.ServiceConfig{
				ObjectStore: &storagemock.MockObjectStore{},
				Remote:      &remotemock.MockTaskAPI{},
				Validator:   &mockValidator{},
				Logger:      log.Noop,
			},
		},
		"missing object store should fail": {
			config: convert.ServiceConfig{
				Remote:    &remotemock.MockTaskAPI{},
				Validator: &mockValidator{},
			},
			expErr: true,
		},
		"missing remote should fail": {
			config: convert.ServiceConfig{
				ObjectStore: &storagemock.MockObjectStore{},
				Validator:   &mockValidator{},
			},
			expErr: true,
		},
		"missing validator should fail": {
			config: convert.ServiceConfig{
				ObjectStore: &storagemock.MockObjectStore{},
				Remote:      &remotemock.MockTaskAPI{},
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			svc, err := convert.NewService(test.config)

			if test.expErr {
				require.Error(err)
				require.Nil(svc)
			} else {
				require.NoError(err)
				require.NotNil(svc)
			}
		})
	}
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		req           convert.Request
		mockValidator func(m *mockValidator)
		mockStore     func(m *storagemock.MockObjectStore)
		mockRemote    func(m *remotemock.MockTaskAPI)
		expOutput     *storage.Object
		expErr        bool
		expKind       model.ErrorKind
		expDetail     string
	}{
		"three valid PDFs should be converted into one output": {
			req: convert.Request{
				Files:           []model.InputFile{pdfFile("a.pdf"), pdfFile("b.pdf"), pdfFile("c.pdf")},
				Tool:            "pdfjpg",
				ExtraParameters: map[string]any{"pdfjpg_mode": "pages"},
			},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, mock.Anything).Times(3).Return(nil)
			},
			mockStore: func(m *storagemock.MockObjectStore) {
				expectStaging(m, "a.pdf", "b.pdf", "c.pdf")
				m.On("Upload", mock.Anything, mock.Anything, "output.zip").Once().Return(&storage.Object{
					Name: "out/result.zip",
					URL:  "https://s3.test/docs/out/result.zip",
				}, nil)
			},
			mockRemote: func(m *remotemock.MockTaskAPI) {
				expectStarted(m)
				m.On("RegisterFile", mock.Anything, mock.Anything, mock.MatchedBy(func(f model.StagedFile) bool {
					return f.StorageURL == "https://s3.test/docs/in/"+f.OriginalName && !f.Registered()
				})).Times(3).Return(registerFile, nil)
				m.On("Execute", mock.Anything, mock.MatchedBy(func(s model.TaskSession) bool {
					return s.TaskID == "task-1" && s.ExtraParameters["pdfjpg_mode"] == "pages"
				}), mock.MatchedBy(func(files []model.StagedFile) bool {
					if len(files) != 3 {
						return false
					}
					for i, n := range []string{"a.pdf", "b.pdf", "c.pdf"} {
						if files[i].OriginalName != n || files[i].RemoteServerName != "srv-"+n {
							return false
						}
					}
					return true
				})).Once().Return(executedSession("TaskSuccess", model.TaskStatusSuccess), nil)
				m.On("Download", mock.Anything, mock.Anything).Once().Return(io.NopCloser(strings.NewReader("zip")), nil)
				m.On("DeleteTask", mock.Anything, mock.MatchedBy(func(s model.TaskSession) bool {
					return s.TaskID == "task-1"
				})).Once().Return(nil)
			},
			expOutput: &storage.Object{Name: "out/result.zip", URL: "https://s3.test/docs/out/result.zip"},
		},

		"a PNG should fail before any network call": {
			req: convert.Request{
				Files: []model.InputFile{model.NewInputFileFromBytes("photo.png", "image/png", []byte("png"))},
				Tool:  "pdfjpg",
			},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, "photo.png").Once().Return(model.ValidationError("Invalid document type of photo.png", nil))
			},
			mockStore:  func(m *storagemock.MockObjectStore) {},
			mockRemote: func(m *remotemock.MockTaskAPI) {},
			expErr:     true,
			expKind:    model.ErrorKindValidation,
			expDetail:  "Invalid document type of photo.png",
		},

		"an encrypted PDF next to a valid one should stage nothing": {
			req: convert.Request{
				Files: []model.InputFile{pdfFile("ok.pdf"), pdfFile("secret.pdf")},
				Tool:  "pdfjpg",
			},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, "ok.pdf").Maybe().Return(nil)
				m.On("Validate", mock.Anything, "secret.pdf").Once().Return(model.ValidationError("secret.pdf: remove password and try again", nil))
			},
			mockStore:  func(m *storagemock.MockObjectStore) {},
			mockRemote: func(m *remotemock.MockTaskAPI) {},
			expErr:     true,
			expKind:    model.ErrorKindValidation,
			expDetail:  "secret.pdf: remove password and try again",
		},

		"no files should be a validation error": {
			req:           convert.Request{Tool: "pdfjpg"},
			mockValidator: func(m *mockValidator) {},
			mockStore:     func(m *storagemock.MockObjectStore) {},
			mockRemote:    func(m *remotemock.MockTaskAPI) {},
			expErr:        true,
			expKind:       model.ErrorKindValidation,
		},

		"a staging failure should not reach the remote service": {
			req: convert.Request{
				Files: []model.InputFile{pdfFile("a.pdf"), pdfFile("b.pdf")},
				Tool:  "pdfjpg",
			},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, mock.Anything).Return(nil)
			},
			mockStore: func(m *storagemock.MockObjectStore) {
				m.On("Upload", mock.Anything, mock.Anything, "a.pdf").Maybe().Return(stagedObject("a.pdf"), nil)
				m.On("Upload", mock.Anything, mock.Anything, "b.pdf").Once().Return(nil, model.UpstreamError("object storage error", errors.New("AccessDenied")))
			},
			mockRemote: func(m *remotemock.MockTaskAPI) {},
			expErr:     true,
			expKind:    model.ErrorKindUpstream,
		},

		"an authentication failure should not start a task": {
			req: convert.Request{Files: []model.InputFile{pdfFile("a.pdf")}, Tool: "pdfjpg"},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, mock.Anything).Return(nil)
			},
			mockStore: func(m *storagemock.MockObjectStore) {
				expectStaging(m, "a.pdf")
			},
			mockRemote: func(m *remotemock.MockTaskAPI) {
				m.On("Authenticate", mock.Anything).Once().Return("", model.UpstreamError("remote service error", nil))
			},
			expErr:  true,
			expKind: model.ErrorKindUpstream,
		},

		"a start failure should not delete any task": {
			req: convert.Request{Files: []model.InputFile{pdfFile("a.pdf")}, Tool: "pdfjpg"},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, mock.Anything).Return(nil)
			},
			mockStore: func(m *storagemock.MockObjectStore) {
				expectStaging(m, "a.pdf")
			},
			mockRemote: func(m *remotemock.MockTaskAPI) {
				m.On("Authenticate", mock.Anything).Once().Return("tok-1", nil)
				m.On("Start", mock.Anything, "tok-1", "pdfjpg").Once().Return(model.TaskSession{}, model.UpstreamError("remote service error", nil))
			},
			expErr:  true,
			expKind: model.ErrorKindUpstream,
		},

		"a registration failure should not execute and delete the task": {
			req: convert.Request{Files: []model.InputFile{pdfFile("a.pdf"), pdfFile("b.pdf")}, Tool: "pdfjpg"},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, mock.Anything).Return(nil)
			},
			mockStore: func(m *storagemock.MockObjectStore) {
				expectStaging(m, "a.pdf", "b.pdf")
			},
			mockRemote: func(m *remotemock.MockTaskAPI) {
				expectStarted(m)
				m.On("RegisterFile", mock.Anything, mock.Anything, mock.MatchedBy(func(f model.StagedFile) bool {
					return f.OriginalName == "a.pdf"
				})).Maybe().Return(registerFile, nil)
				m.On("RegisterFile", mock.Anything, mock.Anything, mock.MatchedBy(func(f model.StagedFile) bool {
					return f.OriginalName == "b.pdf"
				})).Once().Return(model.StagedFile{}, model.UpstreamError("remote service error", nil))
				m.On("DeleteTask", mock.Anything, mock.Anything).Once().Return(nil)
			},
			expErr:  true,
			expKind: model.ErrorKindUpstream,
		},

		"an execute failure should delete the task": {
			req: convert.Request{Files: []model.InputFile{pdfFile("a.pdf")}, Tool: "pdfjpg"},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, mock.Anything).Return(nil)
			},
			mockStore: func(m *storagemock.MockObjectStore) {
				expectStaging(m, "a.pdf")
			},
			mockRemote: func(m *remotemock.MockTaskAPI) {
				expectStarted(m)
				m.On("RegisterFile", mock.Anything, mock.Anything, mock.Anything).Once().Return(registerFile, nil)
				m.On("Execute", mock.Anything, mock.Anything, mock.Anything).Once().Return(startedSession(), model.UpstreamError("remote service error", nil))
				m.On("DeleteTask", mock.Anything, mock.Anything).Once().Return(nil)
			},
			expErr:  true,
			expKind: model.ErrorKindUpstream,
		},

		"a task error status should not download and still delete the task": {
			req: convert.Request{Files: []model.InputFile{pdfFile("a.pdf")}, Tool: "pdfjpg"},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, mock.Anything).Return(nil)
			},
			mockStore: func(m *storagemock.MockObjectStore) {
				expectStaging(m, "a.pdf")
			},
			mockRemote: func(m *remotemock.MockTaskAPI) {
				expectStarted(m)
				m.On("RegisterFile", mock.Anything, mock.Anything, mock.Anything).Once().Return(registerFile, nil)
				m.On("Execute", mock.Anything, mock.Anything, mock.Anything).Once().Return(executedSession("TaskError", model.TaskStatusFailure), nil)
				m.On("DeleteTask", mock.Anything, mock.Anything).Once().Return(nil)
			},
			expErr:    true,
			expKind:   model.ErrorKindTask,
			expDetail: `task finished with status "TaskError"`,
		},

		"a task still processing after execute should fail": {
			req: convert.Request{Files: []model.InputFile{pdfFile("a.pdf")}, Tool: "pdfjpg"},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, mock.Anything).Return(nil)
			},
			mockStore: func(m *storagemock.MockObjectStore) {
				expectStaging(m, "a.pdf")
			},
			mockRemote: func(m *remotemock.MockTaskAPI) {
				expectStarted(m)
				m.On("RegisterFile", mock.Anything, mock.Anything, mock.Anything).Once().Return(registerFile, nil)
				m.On("Execute", mock.Anything, mock.Anything, mock.Anything).Once().Return(executedSession("TaskProcessing", model.TaskStatusPending), nil)
				m.On("DeleteTask", mock.Anything, mock.Anything).Once().Return(nil)
			},
			expErr:  true,
			expKind: model.ErrorKindTask,
		},

		"a download failure should delete the task": {
			req: convert.Request{Files: []model.InputFile{pdfFile("a.pdf")}, Tool: "pdfjpg"},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, mock.Anything).Return(nil)
			},
			mockStore: func(m *storagemock.MockObjectStore) {
				expectStaging(m, "a.pdf")
			},
			mockRemote: func(m *remotemock.MockTaskAPI) {
				expectStarted(m)
				m.On("RegisterFile", mock.Anything, mock.Anything, mock.Anything).Once().Return(registerFile, nil)
				m.On("Execute", mock.Anything, mock.Anything, mock.Anything).Once().Return(executedSession("TaskSuccess", model.TaskStatusSuccess), nil)
				m.On("Download", mock.Anything, mock.Anything).Once().Return(nil, model.UpstreamError("remote service error", nil))
				m.On("DeleteTask", mock.Anything, mock.Anything).Once().Return(nil)
			},
			expErr:  true,
			expKind: model.ErrorKindUpstream,
		},

		"an output storage failure should delete the task": {
			req: convert.Request{Files: []model.InputFile{pdfFile("a.pdf")}, Tool: "pdfjpg"},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, mock.Anything).Return(nil)
			},
			mockStore: func(m *storagemock.MockObjectStore) {
				expectStaging(m, "a.pdf")
				m.On("Upload", mock.Anything, mock.Anything, "output.zip").Once().Return(nil, model.UpstreamError("object storage error", nil))
			},
			mockRemote: func(m *remotemock.MockTaskAPI) {
				expectStarted(m)
				m.On("RegisterFile", mock.Anything, mock.Anything, mock.Anything).Once().Return(registerFile, nil)
				m.On("Execute", mock.Anything, mock.Anything, mock.Anything).Once().Return(executedSession("TaskSuccess", model.TaskStatusSuccess), nil)
				m.On("Download", mock.Anything, mock.Anything).Once().Return(io.NopCloser(strings.NewReader("zip")), nil)
				m.On("DeleteTask", mock.Anything, mock.Anything).Once().Return(nil)
			},
			expErr:  true,
			expKind: model.ErrorKindUpstream,
		},

		"a teardown failure should not change a successful outcome": {
			req: convert.Request{Files: []model.InputFile{pdfFile("a.pdf")}, Tool: "pdfjpg"},
			mockValidator: func(m *mockValidator) {
				m.On("Validate", mock.Anything, mock.Anything).Return(nil)
			},
			mockStore: func(m *storagemock.MockObjectStore) {
				expectStaging(m, "a.pdf")
				m.On("Upload", mock.Anything, mock.Anything, "output.zip").Once().Return(&storage.Object{Name: "out.zip", URL: "https://s3.test/docs/out.zip"}, nil)
			},
			mockRemote: func(m *remotemock.MockTaskAPI) {
				expectStarted(m)
				m.On("RegisterFile", mock.Anything, mock.Anything, mock.Anything).Once().Return(registerFile, nil)
				m.On("Execute", mock.Anything, mock.Anything, mock.Anything).Once().Return(executedSession("TaskSuccess", model.TaskStatusSuccess), nil)
				m.On("Download", mock.Anything, mock.Anything).Once().Return(io.NopCloser(strings.NewReader("zip")), nil)
				m.On("DeleteTask", mock.Anything, mock.Anything).Once().Return(model.UpstreamError("remote service error", nil))
			},
			expOutput: &storage.Object{Name: "out.zip", URL: "https://s3.test/docs/out.zip"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			assert := assert.New(t)

			mv := &mockValidator{}
			ms := &storagemock.MockObjectStore{}
			mr := &remotemock.MockTaskAPI{}
			test.mockValidator(mv)
			test.mockStore(ms)
			test.mockRemote(mr)

			svc, err := convert.NewService(convert.ServiceConfig{
				ObjectStore: ms,
				Remote:      mr,
				Validator:   mv,
				Logger:      log.Noop,
			})
			require.NoError(err)

			res, err := svc.Run(context.Background(), test.req)

			if test.expErr {
				require.Error(err)
				assert.Nil(res)
				kind, _ := model.KindOf(err)
				assert.Equal(test.expKind, kind)
				if test.expDetail != "" {
					assert.Equal(test.expDetail, model.DetailOf(err))
				}
			} else {
				require.NoError(err)
				assert.Equal(*test.expOutput, res.Output)
			}

			mv.AssertExpectations(t)
			ms.AssertExpectations(t)
			mr.AssertExpectations(t)
		})
	}
}

func TestServiceRunDeletesTaskAfterDownload(t *testing.T) {
	require := require.New(t)

	var mu sync.Mutex
	var calls []string
	record := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, name)
		}
	}

	mv := &mockValidator{}
	mv.On("Validate", mock.Anything, mock.Anything).Return(nil)

	ms := &storagemock.MockObjectStore{}
	expectStaging(ms, "a.pdf")
	ms.On("Upload", mock.Anything, mock.Anything, "output.zip").Once().Run(record("store-output")).Return(&storage.Object{Name: "out.zip", URL: "https://s3.test/docs/out.zip"}, nil)

	mr := &remotemock.MockTaskAPI{}
	mr.On("Authenticate", mock.Anything).Once().Run(record("auth")).Return("tok-1", nil)
	mr.On("Start", mock.Anything, "tok-1", "pdfjpg").Once().Run(record("start")).Return(startedSession(), nil)
	mr.On("RegisterFile", mock.Anything, mock.Anything, mock.Anything).Once().Run(record("register")).Return(registerFile, nil)
	mr.On("Execute", mock.Anything, mock.Anything, mock.Anything).Once().Run(record("execute")).Return(executedSession("TaskSuccess", model.TaskStatusSuccess), nil)
	mr.On("Download", mock.Anything, mock.Anything).Once().Run(record("download")).Return(io.NopCloser(strings.NewReader("zip")), nil)
	mr.On("DeleteTask", mock.Anything, mock.Anything).Once().Run(record("delete")).Return(nil)

	svc, err := convert.NewService(convert.ServiceConfig{ObjectStore: ms, Remote: mr, Validator: mv})
	require.NoError(err)

	res, err := svc.Run(context.Background(), convert.Request{Files: []model.InputFile{pdfFile("a.pdf")}, Tool: "pdfjpg"})
	require.NoError(err)
	require.NotEqual(stagedObject("a.pdf").URL, res.Output.URL)
	require.Equal([]string{"auth", "start", "register", "execute", "download", "store-output", "delete"}, calls)
}

func TestServiceRunTeardownSurvivesCancellation(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mv := &mockValidator{}
	mv.On("Validate", mock.Anything, mock.Anything).Return(nil)

	ms := &storagemock.MockObjectStore{}
	expectStaging(ms, "a.pdf")

	mr := &remotemock.MockTaskAPI{}
	expectStarted(mr)
	mr.On("RegisterFile", mock.Anything, mock.Anything, mock.Anything).Once().Return(registerFile, nil)
	// The caller goes away while the task is executing.
	mr.On("Execute", mock.Anything, mock.Anything, mock.Anything).Once().Run(func(mock.Arguments) {
		cancel()
	}).Return(startedSession(), context.Canceled)
	mr.On("DeleteTask", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything).Once().Return(nil)

	svc, err := convert.NewService(convert.ServiceConfig{ObjectStore: ms, Remote: mr, Validator: mv})
	require.NoError(err)

	_, err = svc.Run(ctx, convert.Request{Files: []model.InputFile{pdfFile("a.pdf")}, Tool: "pdfjpg"})
	require.ErrorIs(err, context.Canceled)
	mr.AssertExpectations(t)
}

func TestServiceRunIsNotIdempotent(t *testing.T) {
	require := require.New(t)

	mv := &mockValidator{}
	mv.On("Validate", mock.Anything, mock.Anything).Return(nil)

	ms := &storagemock.MockObjectStore{}
	ms.On("Upload", mock.Anything, mock.Anything, "a.pdf").Twice().Return(stagedObject("a.pdf"), nil)
	ms.On("Upload", mock.Anything, mock.Anything, "output.zip").Once().Return(&storage.Object{Name: "out-1.zip", URL: "https://s3.test/docs/out-1.zip"}, nil)
	ms.On("Upload", mock.Anything, mock.Anything, "output.zip").Once().Return(&storage.Object{Name: "out-2.zip", URL: "https://s3.test/docs/out-2.zip"}, nil)

	mr := &remotemock.MockTaskAPI{}
	mr.On("Authenticate", mock.Anything).Twice().Return("tok-1", nil)
	for i := 1; i <= 2; i++ {
		s := startedSession()
		s.TaskID = fmt.Sprintf("task-%d", i)
		mr.On("Start", mock.Anything, "tok-1", "pdfjpg").Once().Return(s, nil)
	}
	mr.On("RegisterFile", mock.Anything, mock.Anything, mock.Anything).Twice().Return(registerFile, nil)
	mr.On("Execute", mock.Anything, mock.Anything, mock.Anything).Twice().Return(executedSession("TaskSuccess", model.TaskStatusSuccess), nil)
	mr.On("Download", mock.Anything, mock.Anything).Twice().Return(io.NopCloser(strings.NewReader("zip")), nil)
	mr.On("DeleteTask", mock.Anything, mock.MatchedBy(func(s model.TaskSession) bool { return s.TaskID == "task-1" })).Once().Return(nil)
	mr.On("DeleteTask", mock.Anything, mock.MatchedBy(func(s model.TaskSession) bool { return s.TaskID == "task-2" })).Once().Return(nil)

	svc, err := convert.NewService(convert.ServiceConfig{ObjectStore: ms, Remote: mr, Validator: mv})
	require.NoError(err)

	req := convert.Request{Files: []model.InputFile{pdfFile("a.pdf")}, Tool: "pdfjpg"}
	res1, err := svc.Run(context.Background(), req)
	require.NoError(err)
	res2, err := svc.Run(context.Background(), req)
	require.NoError(err)

	require.NotEqual(res1.Output.URL, res2.Output.URL)
	mr.AssertExpectations(t)
	ms.AssertExpectations(t)
}
