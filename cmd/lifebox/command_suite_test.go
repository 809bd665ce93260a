package main

import (
	"bytes"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/lifebox/internal/testutils"
	"github.com/stretchr/testify/suite"
)

// fixedNow is the wall clock seen by printers under test.
var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// CommandTestSuite carries command testing utilities. All cmd/lifebox suites embed it.
type CommandTestSuite struct {
	suite.Suite
	Helper *testutils.TestHelper

	originalNow func() time.Time
}

func (s *CommandTestSuite) SetupSuite() {
	s.Helper = testutils.NewTestHelper(s.T())
}

func (s *CommandTestSuite) SetupTest() {
	s.originalNow = now
	now = func() time.Time { return fixedNow }
	resetFlags(rootCmd)
}

func (s *CommandTestSuite) TearDownTest() {
	now = s.originalNow
}

// ExecuteCommand runs the root command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag of cmd and its children to its default,
// clearing Changed so config precedence is evaluated afresh.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// syncBuffer is a bytes.Buffer safe for one writer and concurrent readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
