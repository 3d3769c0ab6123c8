package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObjects struct {
	objects map[string][]byte
	putErr  error
	getErr  error
	// failKey makes PutObject fail for that object only.
	failKey string
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	if f.failKey != "" && aws.ToString(in.Key) == f.failKey {
		return nil, errors.New("internal error")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func newFakeBackend() (*Backend, *fakeObjects) {
	f := &fakeObjects{objects: make(map[string][]byte)}
	return &Backend{client: f, bucket: "b", prefix: "synapse"}, f
}

func TestSetWritesObjectPerKey(t *testing.T) {
	b, f := newFakeBackend()
	err := b.Set(context.Background(), map[string][]byte{
		"nodes": []byte(`[]`),
		"edges": []byte(`[]`),
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	for _, key := range []string{"synapse/nodes.json", "synapse/edges.json"} {
		if _, ok := f.objects[key]; !ok {
			t.Errorf("object %s not written", key)
		}
	}
}

func TestGet_MissingObjectIsAbsent(t *testing.T) {
	b, f := newFakeBackend()
	f.objects["synapse/sessions.json"] = []byte(`[{"id":"s1"}]`)

	got, err := b.Get(context.Background(), []string{"sessions", "savedTrees"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got["sessions"]) != `[{"id":"s1"}]` {
		t.Errorf("sessions = %s", got["sessions"])
	}
	if _, ok := got["savedTrees"]; ok {
		t.Error("savedTrees should be absent")
	}
}

func TestGet_PropagatesErrors(t *testing.T) {
	b, f := newFakeBackend()
	f.getErr = errors.New("access denied")
	if _, err := b.Get(context.Background(), []string{"nodes"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSet_PropagatesErrors(t *testing.T) {
	b, f := newFakeBackend()
	f.putErr = errors.New("slow down")
	if err := b.Set(context.Background(), map[string][]byte{"nodes": []byte(`[]`)}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSet_PartialWriteKeepsEarlierKeys(t *testing.T) {
	b, f := newFakeBackend()
	f.objects["synapse/nodes.json"] = []byte(`"old"`)
	f.failKey = "synapse/meta.json"

	err := b.Set(context.Background(), map[string][]byte{
		"edges": []byte(`"new"`),
		"meta":  []byte(`"new"`),
		"nodes": []byte(`"new"`),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	// Keys before the failure in sorted order are written; later ones keep
	// their previous contents.
	if got := string(f.objects["synapse/edges.json"]); got != `"new"` {
		t.Errorf("edges = %s, want new", got)
	}
	if got := string(f.objects["synapse/nodes.json"]); got != `"old"` {
		t.Errorf("nodes = %s, want old", got)
	}
}
