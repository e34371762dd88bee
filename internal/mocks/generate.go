// Package mocks provides gomock implementations of the orchestrator ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	tasks := mocks.NewMockTaskRepository(ctrl)
//	tasks.EXPECT().Admit(gomock.Any(), gomock.Any()).Return(handle, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=application_repository_mock.go github.com/target/mmk-autoapply/internal/core ApplicationRepository

// TaskRepository: Admit, ReserveNext, WaitForNotification, Heartbeat, Requeue, Finish, Cancel, GetTask, GetByApplication
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=task_repository_mock.go github.com/target/mmk-autoapply/internal/core TaskRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=catalog_mock.go github.com/target/mmk-autoapply/internal/core JobCatalog,ResumeCatalog,SubmissionLogRepository,ReaperRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/mmk-autoapply/internal/core CacheRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=submitter_mock.go github.com/target/mmk-autoapply/internal/core Submitter,Prober,SubmitterResolver
