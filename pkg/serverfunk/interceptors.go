package serverfunk

//
//Copyright 2019 Telenor Digital AS
//
//Licensed under the Apache License, Version 2.0 (the "License");
//you may not use this file except in compliance with the License.
//You may obtain a copy of the License at
//
//http://www.apache.org/licenses/LICENSE-2.0
//
//Unless required by applicable law or agreed to in writing, software
//distributed under the License is distributed on an "AS IS" BASIS,
//WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//See the License for the specific language governing permissions and
//limitations under the License.
//
import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lab5e/partfunk/pkg/funk/metrics"
)

// WithMetrics returns server options that count requests by method and
// status code.
func WithMetrics(sink metrics.Sink) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.UnaryInterceptor(createMetricsUnaryInterceptor(sink)),
		grpc.StreamInterceptor(createMetricsStreamInterceptor(sink)),
	}
}

func methodName(fullMethod string) string {
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}

func logRequest(m metrics.Sink, fullMethod string, err error) {
	code := status.Code(err)
	m.LogRequest(methodName(fullMethod), code.String())
	if code == codes.Internal || code == codes.Unknown {
		log.WithError(err).WithField("method", fullMethod).Warning("Request failed")
	}
}

func createMetricsUnaryInterceptor(m metrics.Sink) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ret, err := handler(ctx, req)
		logRequest(m, info.FullMethod, err)
		return ret, err
	}
}

// Transfers are client streams
func createMetricsStreamInterceptor(m metrics.Sink) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		err := handler(srv, ss)
		logRequest(m, info.FullMethod, err)
		return err
	}
}
