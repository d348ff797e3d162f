package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// getXRPC performs one XRPC query and streams the raw JSON response to out.
func getXRPC(apiURL, token, nsid string, params url.Values, out io.Writer) error {
	req, err := http.NewRequest("GET", apiURL+"/xrpc/"+nsid+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	_, err = io.Copy(out, resp.Body)
	return err
}
