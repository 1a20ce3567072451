// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

// Package s3 implements wrapping functions to satisfy snapshot.ObjectUploader
// interface. It uses aws api v1.
package s3

import (
	"bytes"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"golang.org/x/net/http2"
)

// Implementation of ObjectUploader using AWS S3 as a backend. Parameters of
// http connection are tuned for AWS environment.
type S3 struct {
	uploader *s3manager.Uploader
	client   *s3.S3
	bucket   string
}

// Options to use in New() function due to high number of parameters. There is
// lower chance of ordering mistake with named parameters.
type Options struct {
	Remote    string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Helper struct used for tuning the http connection.
type httpClientSettings struct {
	connect          time.Duration
	connKeepAlive    time.Duration
	expectContinue   time.Duration
	idleConn         time.Duration
	maxAllIdleConns  int
	maxHostIdleConns int
	responseHeader   time.Duration
	tlsHandshake     time.Duration
}

// Settings recommended by AWS for usage in their network.
var defaultHTTPSettings = httpClientSettings{
	connect:          5 * time.Second,
	expectContinue:   1 * time.Second,
	idleConn:         90 * time.Second,
	connKeepAlive:    30 * time.Second,
	maxAllIdleConns:  100,
	maxHostIdleConns: 10,
	responseHeader:   5 * time.Second,
	tlsHandshake:     5 * time.Second,
}

// Returns http client with configured parameters and added https2 support.
func newHTTPClientWithSettings(httpSettings httpClientSettings) (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: httpSettings.responseHeader,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: httpSettings.connKeepAlive,
			Timeout:   httpSettings.connect,
		}).DialContext,
		MaxIdleConns:          httpSettings.maxAllIdleConns,
		IdleConnTimeout:       httpSettings.idleConn,
		TLSHandshakeTimeout:   httpSettings.tlsHandshake,
		MaxIdleConnsPerHost:   httpSettings.maxHostIdleConns,
		ExpectContinueTimeout: httpSettings.expectContinue,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: tr,
	}, nil
}

// Upload function implemented through s3 api.
func (s *S3) Upload(key string, buf []byte) error {
	_, err := s.uploader.Upload(&s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf),
	})

	return err
}

func New(o Options) (*S3, error) {
	s := new(S3)
	s.bucket = o.Bucket

	httpClient, err := newHTTPClientWithSettings(defaultHTTPSettings)
	if err != nil {
		return nil, err
	}

	sess, err := session.NewSession(newAWSConfig(o, httpClient))
	if err != nil {
		return nil, err
	}

	s.client = s3.New(sess)
	s.uploader = s3manager.NewUploader(sess)

	// Parts are small, multipart uploads do not help. The parallelism comes
	// from the snapshot uploaders instead.
	s.uploader.Concurrency = 1
	s3manager.WithUploaderRequestOptions(request.Option(func(r *request.Request) {
		r.HTTPRequest.Header.Add("X-Amz-Content-Sha256", "UNSIGNED-PAYLOAD")
	}))(s.uploader)

	err = s.makeBucketExist()

	return s, err
}

// Empty Remote means AWS endpoint for the region.
func newAWSConfig(o Options, httpClient *http.Client) *aws.Config {
	return &aws.Config{
		Endpoint:                      aws.String(o.Remote),
		Region:                        aws.String(o.Region),
		Credentials:                   credentials.NewStaticCredentials(o.AccessKey, o.SecretKey, ""),
		S3ForcePathStyle:              aws.Bool(true),
		S3DisableContentMD5Validation: aws.Bool(true),
		HTTPClient:                    httpClient,
	}
}

// Check whether bucket exist and if not, create it and wait until it appears.
func (s *S3) makeBucketExist() error {
	_, err := s.client.HeadBucket(&s3.HeadBucketInput{Bucket: aws.String(s.bucket)})

	if err != nil {
		_, err = s.client.CreateBucket(&s3.CreateBucketInput{
			Bucket: aws.String(s.bucket)})

		if err == nil {
			err = s.client.WaitUntilBucketExists(&s3.HeadBucketInput{
				Bucket: aws.String(s.bucket)})
		}
	}

	return err
}
