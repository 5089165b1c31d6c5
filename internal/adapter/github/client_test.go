package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rolandhq/flowvault/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}

func newTestClient(apiBase string) *Client {
	client, err := New("https://github.com/acme/workflow-backups", apiBase, "main", "token123", nopLogger{})
	if err != nil {
		panic(err)
	}
	return client
}

func TestParseRepoURL(t *testing.T) {
	Convey("Given repository URLs", t, func() {
		Convey("A plain https URL parses", func() {
			owner, repo, err := parseRepoURL("https://github.com/acme/workflow-backups")
			So(err, ShouldBeNil)
			So(owner, ShouldEqual, "acme")
			So(repo, ShouldEqual, "workflow-backups")
		})

		Convey("A .git suffix is stripped", func() {
			_, repo, err := parseRepoURL("https://github.com/acme/workflow-backups.git")
			So(err, ShouldBeNil)
			So(repo, ShouldEqual, "workflow-backups")
		})

		Convey("A URL without owner/repo is rejected", func() {
			_, _, err := parseRepoURL("https://github.com/acme")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestClient(t *testing.T) {
	Convey("Given a version-control client", t, func() {
		ctx := context.Background()

		Convey("ReadFile", func() {
			Convey("When the file exists", func() {
				var gotPath, gotAuth string
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					gotPath = r.URL.Path
					gotAuth = r.Header.Get("Authorization")
					json.NewEncoder(w).Encode(map[string]string{
						"sha":     "abc123",
						"content": base64.StdEncoding.EncodeToString([]byte(`{"name":"order-sync"}`)),
					})
				}))
				defer server.Close()

				content, err := newTestClient(server.URL).ReadFile(ctx, "workflows/wf1.json")

				Convey("It should return the decoded content", func() {
					So(err, ShouldBeNil)
					So(string(content), ShouldEqual, `{"name":"order-sync"}`)
					So(gotPath, ShouldEqual, "/repos/acme/workflow-backups/contents/workflows/wf1.json")
					So(gotAuth, ShouldEqual, "Bearer token123")
				})
			})

			Convey("When the file does not exist", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusNotFound)
				}))
				defer server.Close()

				_, err := newTestClient(server.URL).ReadFile(ctx, "workflows/missing.json")

				Convey("It should return a NotFound error", func() {
					So(domain.KindOf(err), ShouldEqual, domain.KindNotFound)
				})
			})

			Convey("When the token is rejected", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusUnauthorized)
				}))
				defer server.Close()

				_, err := newTestClient(server.URL).ReadFile(ctx, "workflows/wf1.json")

				Convey("It should return an auth error", func() {
					So(domain.KindOf(err), ShouldEqual, domain.KindRemoteAuthFailed)
				})
			})
		})

		Convey("Commit", func() {
			Convey("When the path is new", func() {
				var putBody map[string]string
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					switch r.Method {
					case http.MethodGet:
						w.WriteHeader(http.StatusNotFound)
					case http.MethodPut:
						json.NewDecoder(r.Body).Decode(&putBody)
						w.WriteHeader(http.StatusCreated)
						w.Write([]byte(`{"commit":{"sha":"commit789"}}`))
					}
				}))
				defer server.Close()

				ref, err := newTestClient(server.URL).Commit(ctx,
					"workflows/wf1.json", []byte(`{"name":"order-sync"}`), "Backup workflow wf1 v1.0.0")

				Convey("It should create the file without a SHA and return the commit ref", func() {
					So(err, ShouldBeNil)
					So(ref, ShouldEqual, "commit789")
					So(putBody["message"], ShouldEqual, "Backup workflow wf1 v1.0.0")
					So(putBody["branch"], ShouldEqual, "main")
					_, hasSHA := putBody["sha"]
					So(hasSHA, ShouldBeFalse)
				})
			})

			Convey("When the path already has content", func() {
				var gotSHA string
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					switch r.Method {
					case http.MethodGet:
						json.NewEncoder(w).Encode(map[string]string{"sha": "blob42", "content": ""})
					case http.MethodPut:
						var body map[string]string
						json.NewDecoder(r.Body).Decode(&body)
						gotSHA = body["sha"]
						w.Write([]byte(`{"commit":{"sha":"commit100"}}`))
					}
				}))
				defer server.Close()

				ref, err := newTestClient(server.URL).Commit(ctx,
					"workflows/wf1.json", []byte(`{}`), "update")

				Convey("It should pass the current blob SHA", func() {
					So(err, ShouldBeNil)
					So(ref, ShouldEqual, "commit100")
					So(gotSHA, ShouldEqual, "blob42")
				})
			})

			Convey("When the ref moved once between read and commit", func() {
				var puts atomic.Int32
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					switch r.Method {
					case http.MethodGet:
						json.NewEncoder(w).Encode(map[string]string{"sha": "fresh", "content": ""})
					case http.MethodPut:
						if puts.Add(1) == 1 {
							w.WriteHeader(http.StatusConflict)
							return
						}
						w.Write([]byte(`{"commit":{"sha":"commit200"}}`))
					}
				}))
				defer server.Close()

				ref, err := newTestClient(server.URL).Commit(ctx, "workflows/wf1.json", []byte(`{}`), "update")

				Convey("It should re-read and succeed on the retry", func() {
					So(err, ShouldBeNil)
					So(ref, ShouldEqual, "commit200")
					So(puts.Load(), ShouldEqual, 2)
				})
			})

			Convey("When the ref keeps moving", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					switch r.Method {
					case http.MethodGet:
						json.NewEncoder(w).Encode(map[string]string{"sha": "stale", "content": ""})
					case http.MethodPut:
						w.WriteHeader(http.StatusConflict)
					}
				}))
				defer server.Close()

				_, err := newTestClient(server.URL).Commit(ctx, "workflows/wf1.json", []byte(`{}`), "update")

				Convey("It should surface ConcurrentModification after one retry", func() {
					So(domain.KindOf(err), ShouldEqual, domain.KindConcurrentModification)
				})
			})
		})
	})
}
