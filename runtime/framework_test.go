package runtime

import "testing"

func TestFrameworkDestroy_NoLeakWithoutOutstandingHandles(t *testing.T) {
	Init()
	ctx := NewTrackedContext()
	ctx.InstallInProcess(mustDescriptor(t, "a"), &stubActivatable{})
	ctx.InstallInProcess(mustDescriptor(t, "b"), &stubActivatable{})

	leaked := Destroy()
	if len(leaked) != 0 {
		t.Fatalf("expected no leaks with zero outstanding handles, got %v", leaked)
	}
}

func TestFrameworkDestroy_ReportsOutstandingHandle(t *testing.T) {
	Init()
	ctx := NewTrackedContext()
	ctx.InstallInProcess(mustDescriptor(t, "a"), &stubActivatable{})
	ctx.InstallInProcess(mustDescriptor(t, "b"), &stubActivatable{})

	handle, err := ctx.GetInfo("a")
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	defer ctx.ReleaseInfo(handle)

	leaked := Destroy()
	if len(leaked) != 1 || leaked[0] != "a" {
		t.Fatalf("expected [a] leaked, got %v", leaked)
	}
}

func TestFrameworkDestroy_RefCounted(t *testing.T) {
	Init()
	Init()
	ctx := NewTrackedContext()
	ctx.InstallInProcess(mustDescriptor(t, "a"), &stubActivatable{})

	if leaked := Destroy(); leaked != nil {
		t.Fatalf("first Destroy should only decrement the ref count, got %v", leaked)
	}
	if _, ok := ctx.State("a"); !ok {
		t.Fatal("context should not have been torn down while the ref count is still positive")
	}

	if leaked := Destroy(); len(leaked) != 0 {
		t.Fatalf("second Destroy should tear down with no leaks, got %v", leaked)
	}
}
