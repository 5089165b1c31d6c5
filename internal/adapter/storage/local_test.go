package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLocalStorage(t *testing.T) {
	Convey("Given a LocalStorage", t, func() {
		tempDir, err := os.MkdirTemp("", "local_storage_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		Convey("NewLocal", func() {
			Convey("When creating with a non-existent path", func() {
				newPath := filepath.Join(tempDir, "new", "nested", "dir")
				archive, err := NewLocal(newPath)

				Convey("It should create the directory and succeed", func() {
					So(err, ShouldBeNil)
					So(archive, ShouldNotBeNil)

					info, err := os.Stat(newPath)
					So(err, ShouldBeNil)
					So(info.IsDir(), ShouldBeTrue)
				})
			})
		})

		Convey("Upload method", func() {
			archive, _ := NewLocal(tempDir)
			ctx := context.Background()

			Convey("When uploading with a nested remote name", func() {
				sourceFile := filepath.Join(tempDir, "source.json.gz")
				So(os.WriteFile(sourceFile, []byte("snapshot data"), 0644), ShouldBeNil)

				err := archive.Upload(ctx, sourceFile, "wf1/1.0.0.json.gz")

				Convey("It should create the nested path", func() {
					So(err, ShouldBeNil)

					content, err := os.ReadFile(filepath.Join(tempDir, "wf1", "1.0.0.json.gz"))
					So(err, ShouldBeNil)
					So(string(content), ShouldEqual, "snapshot data")
				})
			})

			Convey("When the source file does not exist", func() {
				err := archive.Upload(ctx, "nonexistent.json", "wf1/1.0.0.json")

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to open source")
				})
			})
		})

		Convey("List method", func() {
			archive, _ := NewLocal(tempDir)
			ctx := context.Background()

			Convey("When the archive has nested files", func() {
				So(os.MkdirAll(filepath.Join(tempDir, "wf1"), 0755), ShouldBeNil)
				So(os.WriteFile(filepath.Join(tempDir, "wf1", "1.0.0.json.gz"), []byte("a"), 0644), ShouldBeNil)
				So(os.WriteFile(filepath.Join(tempDir, "wf1", "1.0.1.json.gz"), []byte("b"), 0644), ShouldBeNil)

				files, err := archive.List(ctx)

				Convey("It should list them with slash-separated names", func() {
					So(err, ShouldBeNil)
					So(len(files), ShouldEqual, 2)
					So(files, ShouldContain, "wf1/1.0.0.json.gz")
					So(files, ShouldContain, "wf1/1.0.1.json.gz")
				})
			})

			Convey("When the archive is empty", func() {
				files, err := archive.List(ctx)
				So(err, ShouldBeNil)
				So(len(files), ShouldEqual, 0)
			})
		})

		Convey("Delete method", func() {
			archive, _ := NewLocal(tempDir)
			ctx := context.Background()

			Convey("When deleting an existing file", func() {
				So(os.MkdirAll(filepath.Join(tempDir, "wf1"), 0755), ShouldBeNil)
				target := filepath.Join(tempDir, "wf1", "1.0.0.json.gz")
				So(os.WriteFile(target, []byte("a"), 0644), ShouldBeNil)

				err := archive.Delete(ctx, "wf1/1.0.0.json.gz")

				Convey("It should delete successfully", func() {
					So(err, ShouldBeNil)
					_, err := os.Stat(target)
					So(os.IsNotExist(err), ShouldBeTrue)
				})
			})

			Convey("When deleting a non-existent file", func() {
				err := archive.Delete(ctx, "wf1/missing.json.gz")

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to delete file")
				})
			})
		})
	})
}
