package n8n

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rolandhq/flowvault/internal/domain"
	"github.com/rolandhq/flowvault/internal/infrastructure/retry"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// fastPolicy records delays instead of sleeping.
func fastPolicy(maxAttempts int, slept *[]time.Duration) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		Rand:        func() float64 { return 0 },
		Sleep: func(ctx context.Context, d time.Duration) error {
			if slept != nil {
				*slept = append(*slept, d)
			}
			return ctx.Err()
		},
	}
}

func TestClient(t *testing.T) {
	Convey("Given an n8n client", t, func() {
		ctx := context.Background()

		Convey("Base URL normalization", func() {
			So(normalizeBaseURL("http://localhost:5678"), ShouldEqual, "http://localhost:5678/api/v1")
			So(normalizeBaseURL("http://localhost:5678/"), ShouldEqual, "http://localhost:5678/api/v1")
			So(normalizeBaseURL("http://localhost:5678/api/v1"), ShouldEqual, "http://localhost:5678/api/v1")
		})

		Convey("FetchWorkflow", func() {
			Convey("When the remote responds with a workflow", func() {
				var gotHeader string
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					gotHeader = r.Header.Get("X-N8N-API-KEY")
					w.Write([]byte(`{"id":"wf1","name":"order-sync","nodes":[]}`))
				}))
				defer server.Close()

				client := New(server.URL, "X-N8N-API-KEY", "secret", fastPolicy(3, nil), nopLogger{})
				payload, err := client.FetchWorkflow(ctx, "wf1")

				Convey("It should authenticate with the custom header and return the payload", func() {
					So(err, ShouldBeNil)
					So(gotHeader, ShouldEqual, "secret")
					So(string(payload), ShouldContainSubstring, "order-sync")
				})
			})

			Convey("When the remote returns 500 three times then 200", func() {
				var calls atomic.Int32
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if calls.Add(1) <= 3 {
						w.WriteHeader(http.StatusInternalServerError)
						return
					}
					w.Write([]byte(`{"id":"wf1","name":"order-sync"}`))
				}))
				defer server.Close()

				var slept []time.Duration
				client := New(server.URL, "X-N8N-API-KEY", "secret", fastPolicy(5, &slept), nopLogger{})
				payload, err := client.FetchWorkflow(ctx, "wf1")

				Convey("It should succeed after exactly three backoff delays", func() {
					So(err, ShouldBeNil)
					So(payload, ShouldNotBeNil)
					So(calls.Load(), ShouldEqual, 4)
					So(len(slept), ShouldEqual, 3)
				})

				Convey("Observed delays should be monotonically non-decreasing", func() {
					for i := 1; i < len(slept); i++ {
						So(slept[i], ShouldBeGreaterThanOrEqualTo, slept[i-1])
					}
				})
			})

			Convey("When the remote keeps returning 500", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusInternalServerError)
				}))
				defer server.Close()

				client := New(server.URL, "X-N8N-API-KEY", "secret", fastPolicy(3, nil), nopLogger{})
				_, err := client.FetchWorkflow(ctx, "wf1")

				Convey("It should surface RemoteUnavailable after the retry budget", func() {
					So(err, ShouldNotBeNil)
					So(domain.KindOf(err), ShouldEqual, domain.KindRemoteUnavailable)
				})
			})

			Convey("When the remote returns 401", func() {
				var calls atomic.Int32
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					calls.Add(1)
					w.WriteHeader(http.StatusUnauthorized)
				}))
				defer server.Close()

				client := New(server.URL, "X-N8N-API-KEY", "wrong", fastPolicy(3, nil), nopLogger{})
				_, err := client.FetchWorkflow(ctx, "wf1")

				Convey("It should fail immediately with RemoteAuthFailed and zero retries", func() {
					So(domain.KindOf(err), ShouldEqual, domain.KindRemoteAuthFailed)
					So(calls.Load(), ShouldEqual, 1)
				})
			})

			Convey("When the remote returns 404", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusNotFound)
					w.Write([]byte(`{"message":"workflow not found"}`))
				}))
				defer server.Close()

				client := New(server.URL, "X-N8N-API-KEY", "secret", fastPolicy(3, nil), nopLogger{})
				_, err := client.FetchWorkflow(ctx, "missing")

				Convey("It should fail with RemoteRejected carrying the remote detail", func() {
					So(domain.KindOf(err), ShouldEqual, domain.KindRemoteRejected)
					So(err.Error(), ShouldContainSubstring, "workflow not found")
				})
			})

			Convey("When the remote returns 429 with Retry-After", func() {
				var calls atomic.Int32
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if calls.Add(1) == 1 {
						w.Header().Set("Retry-After", "7")
						w.WriteHeader(http.StatusTooManyRequests)
						return
					}
					w.Write([]byte(`{"id":"wf1","name":"order-sync"}`))
				}))
				defer server.Close()

				var slept []time.Duration
				client := New(server.URL, "X-N8N-API-KEY", "secret", fastPolicy(3, &slept), nopLogger{})
				_, err := client.FetchWorkflow(ctx, "wf1")

				Convey("It should honor the hint instead of the backoff delay", func() {
					So(err, ShouldBeNil)
					So(len(slept), ShouldEqual, 1)
					So(slept[0], ShouldEqual, 7*time.Second)
				})
			})

			Convey("When the payload carries credential references", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte(`{"id":"wf1","name":"order-sync","nodes":[` +
						`{"type":"httpRequest","credentials":{"httpBasicAuth":{"id":"77","name":"prod-creds"}}}]}`))
				}))
				defer server.Close()

				client := New(server.URL, "X-N8N-API-KEY", "secret", fastPolicy(3, nil), nopLogger{})
				payload, err := client.FetchWorkflow(ctx, "wf1")

				Convey("It should replace them with placeholders", func() {
					So(err, ShouldBeNil)
					So(string(payload), ShouldNotContainSubstring, "prod-creds")
					So(string(payload), ShouldContainSubstring, "CREDENTIAL_PLACEHOLDER")
				})
			})
		})

		Convey("PushWorkflow", func() {
			Convey("When the remote accepts the payload", func() {
				var gotMethod, gotBody string
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					gotMethod = r.Method
					body, _ := io.ReadAll(r.Body)
					gotBody = string(body)
					w.Write([]byte(`{"id":"wf1"}`))
				}))
				defer server.Close()

				client := New(server.URL, "X-N8N-API-KEY", "secret", fastPolicy(3, nil), nopLogger{})
				err := client.PushWorkflow(ctx, "wf1", []byte(`{"name":"restored"}`))

				Convey("It should PUT the payload", func() {
					So(err, ShouldBeNil)
					So(gotMethod, ShouldEqual, http.MethodPut)
					So(gotBody, ShouldContainSubstring, "restored")
				})
			})
		})

		Convey("ListWorkflows", func() {
			Convey("When the remote nests results under data", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					json.NewEncoder(w).Encode(map[string]interface{}{
						"data": []map[string]interface{}{
							{"id": "wf1", "name": "order-sync", "active": true},
							{"id": "wf2", "name": "invoice-mailer", "active": false},
						},
					})
				}))
				defer server.Close()

				client := New(server.URL, "X-N8N-API-KEY", "secret", fastPolicy(3, nil), nopLogger{})
				workflows, err := client.ListWorkflows(ctx)

				Convey("It should unwrap the envelope", func() {
					So(err, ShouldBeNil)
					So(len(workflows), ShouldEqual, 2)
					So(workflows[0].Name, ShouldEqual, "order-sync")
					So(workflows[1].Active, ShouldBeFalse)
				})
			})
		})

		Convey("Cancellation", func() {
			Convey("When the context is cancelled before a retry wait", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusInternalServerError)
				}))
				defer server.Close()

				cancelled, cancel := context.WithCancel(ctx)
				cancel()

				client := New(server.URL, "X-N8N-API-KEY", "secret", fastPolicy(3, nil), nopLogger{})
				_, err := client.FetchWorkflow(cancelled, "wf1")

				Convey("It should surface a Cancelled error", func() {
					So(domain.KindOf(err), ShouldEqual, domain.KindCancelled)
				})
			})
		})
	})
}

func TestSanitizeCredentials(t *testing.T) {
	Convey("Given workflow payloads", t, func() {
		Convey("A payload without nodes passes through unchanged", func() {
			in := []byte(`{"id":"wf1","name":"empty"}`)
			out, err := SanitizeCredentials(in)
			So(err, ShouldBeNil)
			So(out, ShouldResemble, in)
		})

		Convey("A payload whose nodes carry no credentials passes through unchanged", func() {
			in := []byte(`{"name":"plain","nodes":[{"type":"noOp"}]}`)
			out, err := SanitizeCredentials(in)
			So(err, ShouldBeNil)
			So(out, ShouldResemble, in)
		})

		Convey("A non-object payload is rejected", func() {
			_, err := SanitizeCredentials([]byte(`[1,2,3]`))
			So(err, ShouldNotBeNil)
		})
	})
}
