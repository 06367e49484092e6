package testutil

import "time"

// Test user information used across all test helpers.
const (
	// TestAuthor is the author and committer name of test commits.
	TestAuthor = "Test User"

	// TestEmail is the author and committer email of test commits.
	TestEmail = "test@example.com"
)

// Test file content.
const (
	// TestFileContent is sample content for README files.
	TestFileContent = "# Test Repository\n\nThis is a test repository.\n"

	// TestGoFileContent is sample Go source code.
	TestGoFileContent = `package main

import "fmt"

func main() {
	fmt.Println("Hello, World!")
}
`
)

// Epoch is a fixed base time for commits whose order matters. Add hours to
// it to build histories with known timestamps.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
