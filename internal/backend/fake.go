package backend

import "context"

// FakeFetcher is a deterministic Fetcher for tests.
type FakeFetcher struct {
	Bytes []byte
	Err   error
}

func (f *FakeFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	return f.Bytes, f.Err
}

// FakeTransformer is a scriptable Transformer for tests: Calls counts
// every call, Errs/Results are consumed in order per call index and the
// last entry is sticky once exhausted.
type FakeTransformer struct {
	Results [][]byte
	Errs    []error
	Calls   int
}

func (f *FakeTransformer) Transform(_ context.Context, image []byte, _ string) ([]byte, error) {
	i := f.Calls
	f.Calls++

	var result []byte
	var err error

	if len(f.Results) > 0 {
		idx := i
		if idx >= len(f.Results) {
			idx = len(f.Results) - 1
		}
		result = f.Results[idx]
	}
	if len(f.Errs) > 0 {
		idx := i
		if idx >= len(f.Errs) {
			idx = len(f.Errs) - 1
		}
		err = f.Errs[idx]
	}

	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil // pass-through
	}
	return result, nil
}

// FakeStore is a deterministic Store for tests.
type FakeStore struct {
	Result StoreResult
	Err    error
}

func (f *FakeStore) Store(_ context.Context, _ []byte, _ StoreParams) (StoreResult, error) {
	return f.Result, f.Err
}
