package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供请求级别的公共字段，供访问日志与检索日志复用。
func RequestFields(requestID, ip, method, path string) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"ip":         ip,
		"method":     method,
		"path":       path,
	}
}

// ObjectFields 描述一次对象访问，width 为 0 表示原图。
func ObjectFields(namespace, id string, width int, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"namespace": namespace,
		"uuid":      id,
		"width":     width,
		"cache_hit": cacheHit,
	}
}
