package utils_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/proofpilot/pkg/utils"
)

var _ = Describe("WriteFileAtomic", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("creates the file with the given mode", func() {
		path := filepath.Join(dir, "config.toml")
		Expect(utils.WriteFileAtomic(path, []byte("version = 0\n"), 0o600)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("version = 0\n"))

		info, err := os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
	})

	It("replaces existing content and leaves no temporary files", func() {
		path := filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(path, []byte("old"), 0o600)).To(Succeed())
		Expect(utils.WriteFileAtomic(path, []byte("new"), 0o600)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("new"))

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})

	It("fails when the directory does not exist", func() {
		err := utils.WriteFileAtomic(filepath.Join(dir, "missing", "x"), []byte("x"), 0o600)
		Expect(err).To(HaveOccurred())
	})
})
