package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learntube/backend/core"
	"github.com/learntube/backend/core/course"
	"github.com/learntube/backend/core/enrollment"
	"github.com/learntube/backend/core/user"
	emailsvc "github.com/learntube/backend/services/email"
	logsvc "github.com/learntube/backend/services/logger"
	"github.com/learntube/backend/storage/database"
	inmemdb "github.com/learntube/backend/storage/database/inmem"
	testutil "github.com/learntube/backend/tests"
)

type fakeMigrator struct {
	calls [][]string
}

func (m *fakeMigrator) Migrate(_ context.Context, command string, args ...string) error {
	switch command {
	case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
	case "up-to", "down-to":
		if len(args) == 0 {
			return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
		}
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			return fmt.Errorf("version must be a number (got '%s')", args[0])
		}
	default:
		return fmt.Errorf("%q: no such command", command)
	}
	m.calls = append(m.calls, append([]string{command}, args...))
	return nil
}

func setup(t *testing.T) (*commandLine, *database.Store, *fakeMigrator) {
	conf := testutil.NewConfig()
	logger := logsvc.NewNopLogger()
	store := database.NewMemoryStore(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	validate, _ := testutil.NewValidator()
	require.NoError(t, core.ParseEmailTemplates(conf))

	courseSvc := course.NewService(store.Courses, store.Enrollments, store.Users, logger)
	m := new(fakeMigrator)

	return &commandLine{
		usrSvc:   user.NewService(store.Users, mailSvc, logger),
		enrSvc:   enrollment.NewService(store.Enrollments, courseSvc, logger),
		validate: validate,
		migrator: m,
	}, store, m
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
	invalid    bool // validator.ValidationErrors expected
}

func (tt cliTest) run(t *testing.T, cli *commandLine) error {
	readPasswordFunc = func(int) ([]byte, error) {
		return []byte(tt.pwd), nil
	}
	return cli.run(append([]string{"admin"}, tt.args...))
}

func (tt cliTest) check(t *testing.T, err error) {
	switch {
	case tt.invalid:
		var vErrs validator.ValidationErrors
		assert.ErrorAs(t, err, &vErrs)
	case tt.wantErr != nil:
		assert.ErrorIs(t, err, tt.wantErr)
	case tt.wantErrStr != "":
		assert.EqualError(t, err, tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, m := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.run(t, cli))
		})
	}
	assert.Equal(t, [][]string{{"up"}, {"up-to", "2"}, {"down"}, {"status"}}, m.calls)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, store, _ := setup(t)
	testutil.CreateUser(t, store.Users, "Jane", "jane@test.cd", "", user.RoleStudent)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-name", "Ada", "-email", "ada@test.cd"}, wantErr: errHelp},
		{name: "weak password", args: []string{"adduser", "-name", "Ada", "-email", "ada@test.cd"}, pwd: "abc", invalid: true},
		{name: "email taken", args: []string{"adduser", "-name", "Jane", "-email", "JANE@test.cd"}, pwd: "s3cr3t-pass", wantErrStr: user.ErrEmailExists.Error()},
		{name: "instructor", args: []string{"adduser", "-name", "Ada", "-email", "ada@test.cd", "-role", "instructor"}, pwd: "s3cr3t-pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.run(t, cli))
		})
	}

	usr, err := store.Users.GetUser(context.Background(), user.GetFilter{Email: "ada@test.cd"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleInstructor, usr.Role)
	assert.NoError(t, usr.CheckPassword("s3cr3t-pass"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, store, _ := setup(t)
	usr := testutil.CreateUser(t, store.Users, "User", "awe@test.cd", "mdr-pass", user.RoleStudent)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, pwd: "lol-pass", wantErr: user.ErrNotFound},
		{name: "too short", args: []string{"resetpassword", "-email", "awe@test.cd"}, pwd: "a", invalid: true},
		{name: "with spaces", args: []string{"resetpassword", "-email", "awe@test.cd"}, pwd: "lmao pass", invalid: true},
		{name: "similar to email", args: []string{"resetpassword", "-email", "awe@test.cd"}, pwd: "awe@test.cd", invalid: true},
		{name: "reset", args: []string{"resetpassword", "-email", " AWE@test.cd"}, pwd: "lmao-pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.run(t, cli))
		})
	}

	refreshed, err := store.Users.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.False(t, bytes.Equal(refreshed.PasswordHash, usr.PasswordHash))
	assert.NoError(t, refreshed.CheckPassword("lmao-pass"))
}

func Test_commandLine_purgeOrphans(t *testing.T) {
	cli, store, _ := setup(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, store.Users, "Ada", "ada@test.cd", "", user.RoleInstructor)
	bob := testutil.CreateUser(t, store.Users, "Bob", "bob@test.cd", "", user.RoleStudent)
	eve := testutil.CreateUser(t, store.Users, "Eve", "eve@test.cd", "", user.RoleStudent)
	kept := testutil.CreateCourse(t, store.Courses, ada, "Go", "Programming", []string{"a"})
	gone := testutil.CreateCourse(t, store.Courses, ada, "Gone", "Misc", []string{"a"})

	testutil.CreateEnrollment(t, store.Enrollments, bob, kept, nil)
	testutil.CreateEnrollment(t, store.Enrollments, bob, gone, nil)
	testutil.CreateEnrollment(t, store.Enrollments, eve, gone, []int{0})
	require.NoError(t, store.Courses.DeleteCourse(ctx, gone.ID, ada.ID))

	require.NoError(t, cliTest{args: []string{"purgeorphans"}}.run(t, cli))

	counts, err := store.Enrollments.CountEnrollmentsByCourse(ctx, kept.ID, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[kept.ID])
	assert.Zero(t, counts[gone.ID])

	// nothing left to purge
	require.NoError(t, cliTest{args: []string{"purgeorphans"}}.run(t, cli))
}
